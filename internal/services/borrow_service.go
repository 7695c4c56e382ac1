package services

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
	"github.com/maxaizer/shiftmatch/internal/domain/events"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/maxaizer/shiftmatch/internal/logger"
	"github.com/maxaizer/shiftmatch/internal/metrics"
	"github.com/maxaizer/shiftmatch/internal/repositories"
	"github.com/maxaizer/shiftmatch/internal/session"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"strings"
	"time"
)

type borrowRepository interface {
	AddRequest(ctx context.Context, request models.BorrowRequest) error
	GetRequest(ctx context.Context, id snowflake.ID) (*models.BorrowRequest, error)
	GetOffer(ctx context.Context, id snowflake.ID) (*models.BorrowOffer, error)
	InsertOffers(ctx context.Context, requestID snowflake.ID, offers []models.BorrowOffer) ([]models.BorrowOffer, error)
	Accept(ctx context.Context, offerID, candidateID snowflake.ID, booking models.Booking,
		now time.Time) (*models.BorrowAcceptance, bool, error)
	Decline(ctx context.Context, offerID, candidateID snowflake.ID, now time.Time) (bool, error)
	Close(ctx context.Context, requestID snowflake.ID, now time.Time) (bool, error)
	ExpireRequests(ctx context.Context, now time.Time) (int64, error)
	ListOffersByRequest(ctx context.Context, requestID snowflake.ID) ([]models.BorrowOffer, error)
	ListOffersByCandidate(ctx context.Context, candidateID snowflake.ID, statuses []models.BorrowOfferStatus) ([]models.BorrowOffer, error)
}

type candidatePool interface {
	ListAvailable(ctx context.Context, pool repositories.PoolQuery) ([]models.Candidate, error)
}

type trustGraph interface {
	TrustedPartners(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error)
	GetCircle(ctx context.Context, id snowflake.ID) (*models.Circle, error)
	MemberOrgs(ctx context.Context, circleID snowflake.ID) ([]snowflake.ID, error)
}

type RequestInput struct {
	OrgID    snowflake.ID
	Location string
	Role     string
	Window   models.TimeWindow
	Scope    models.BorrowScope
	CircleID *snowflake.ID
}

// BorrowService broadcasts staffing shortfalls to a scoped pool and lets exactly one candidate fill each.
type BorrowService struct {
	bus         EventBus.Bus
	node        *snowflake.Node
	borrows     borrowRepository
	pool        candidatePool
	circles     trustGraph
	memberships membershipChecker
}

func NewBorrowService(bus EventBus.Bus, node *snowflake.Node, borrows borrowRepository, pool candidatePool,
	circles trustGraph, memberships membershipChecker) *BorrowService {

	return &BorrowService{
		bus:         bus,
		node:        node,
		borrows:     borrows,
		pool:        pool,
		circles:     circles,
		memberships: memberships,
	}
}

func (s *BorrowService) CreateRequest(ctx context.Context, sess session.Session, input RequestInput) (*models.BorrowRequest, error) {

	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	if err = requireMember(ctx, s.memberships, input.OrgID, actorID); err != nil {
		return nil, err
	}
	if err = s.validateRequest(ctx, input); err != nil {
		return nil, err
	}

	window := input.Window.UTC()
	request := models.BorrowRequest{
		Record:             models.Record{ID: s.node.Generate(), DemoSession: sess.Tag()},
		OrgID:              input.OrgID,
		Location:           strings.TrimSpace(input.Location),
		NormalizedLocation: models.NormalizeLocation(input.Location),
		Role:               strings.TrimSpace(input.Role),
		WindowStart:        window.Start,
		WindowEnd:          window.End,
		Scope:              input.Scope,
		CircleID:           input.CircleID,
		Status:             models.BorrowRequestOpen,
		CreatedBy:          actorID,
	}
	if err = s.borrows.AddRequest(ctx, request); err != nil {
		return nil, failure("failed to create borrow request", err)
	}

	log.Infof("borrow request %v opened by org %v with %s scope", request.ID, request.OrgID, request.Scope)
	return s.loadRequest(ctx, request.ID)
}

func (s *BorrowService) validateRequest(ctx context.Context, input RequestInput) error {
	if !input.Scope.Valid() {
		return errs.Newf(errs.Validation, "unknown scope %q", input.Scope)
	}
	if strings.TrimSpace(input.Role) == "" {
		return errs.New(errs.Validation, "role is required")
	}
	if input.Scope == models.ScopeLocal && models.NormalizeLocation(input.Location) == "" {
		return errs.New(errs.Validation, "location is required for the local pool")
	}
	if !input.Window.Valid() {
		return errs.New(errs.Validation, "window end must be after its start")
	}

	if input.CircleID == nil {
		return nil
	}
	if input.Scope != models.ScopeCircle {
		return errs.New(errs.Validation, "a circle can only be chosen with the circle scope")
	}

	circle, err := s.circles.GetCircle(ctx, *input.CircleID)
	if err != nil {
		return failure("failed to load circle", err)
	}
	if circle.OwnerOrgID == input.OrgID {
		return nil
	}
	members, err := s.circles.MemberOrgs(ctx, circle.ID)
	if err != nil {
		return failure("failed to load circle members", err)
	}
	if !lo.Contains(members, input.OrgID) {
		return errs.New(errs.Forbidden, "organization is not part of this circle")
	}
	return nil
}

// ResolvePool lists the candidates eligible for the request, derived only from its stored scope.
func (s *BorrowService) ResolvePool(ctx context.Context, requestID snowflake.ID) ([]models.Candidate, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.resolvePool(ctx, *request)
}

func (s *BorrowService) resolvePool(ctx context.Context, request models.BorrowRequest) ([]models.Candidate, error) {

	query := repositories.PoolQuery{Window: request.Window()}

	switch request.Scope {
	case models.ScopeInternal:
		query.MatchedWithOrgs = []snowflake.ID{request.OrgID}
	case models.ScopeCircle:
		orgs, err := s.circleOrgs(ctx, request)
		if err != nil {
			return nil, err
		}
		query.MatchedWithOrgs = orgs
		query.Visibilities = []models.Visibility{models.VisibilityPublic, models.VisibilityCircle}
	case models.ScopeLocal:
		query.Visibilities = []models.Visibility{models.VisibilityPublic}
		query.Location = request.Location
	default:
		return nil, errs.Newf(errs.Validation, "unknown scope %q", request.Scope)
	}

	candidates, err := s.pool.ListAvailable(ctx, query)
	if err != nil {
		return nil, failure("failed to resolve candidate pool", err)
	}
	return candidates, nil
}

// circleOrgs returns the accepted partners of the requesting org, narrowed to the request's circle if set.
// The result is never nil, so an org without partners resolves to an empty pool.
func (s *BorrowService) circleOrgs(ctx context.Context, request models.BorrowRequest) ([]snowflake.ID, error) {
	partners, err := s.circles.TrustedPartners(ctx, request.OrgID)
	if err != nil {
		return nil, failure("failed to load trusted partners", err)
	}

	if request.CircleID != nil {
		circle, err := s.circles.GetCircle(ctx, *request.CircleID)
		if err != nil {
			return nil, failure("failed to load circle", err)
		}
		members, err := s.circles.MemberOrgs(ctx, circle.ID)
		if err != nil {
			return nil, failure("failed to load circle members", err)
		}
		members = append(members, circle.OwnerOrgID)
		partners = lo.Intersect(partners, members)
	}

	return append([]snowflake.ID{}, partners...), nil
}

// FanOut sends one pending borrow offer to every eligible candidate. Candidates who already hold an offer
// for the request are skipped, so running it again only reaches new candidates.
func (s *BorrowService) FanOut(ctx context.Context, sess session.Session, requestID snowflake.ID) ([]models.BorrowOffer, error) {

	request, err := s.employerRequest(ctx, sess, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.BorrowRequestOpen {
		return nil, errs.Newf(errs.InvalidStatus, "borrow request is %s", request.Status)
	}

	pool, err := s.resolvePool(ctx, *request)
	if err != nil {
		return nil, err
	}

	offers := lo.Map(pool, func(candidate models.Candidate, _ int) models.BorrowOffer {
		return models.BorrowOffer{
			Record:      models.Record{ID: s.node.Generate(), DemoSession: sess.Tag()},
			RequestID:   request.ID,
			CandidateID: candidate.ID,
			Status:      models.BorrowOfferPending,
		}
	})

	created, err := s.borrows.InsertOffers(ctx, request.ID, offers)
	if err != nil {
		return nil, failure("failed to fan out borrow offers", err)
	}

	metrics.FanOutSize.Observe(float64(len(created)))
	log.Infof("borrow request %v fanned out to %d of %d eligible candidates", request.ID, len(created), len(pool))
	for _, offer := range created {
		s.bus.Publish(events.BorrowOfferReceivedTopic, events.BorrowOfferReceived{Request: *request, Offer: offer})
	}
	return created, nil
}

// Accept fills the request with the addressed candidate. Only one accept per request ever succeeds;
// the others get a conflict naming the winning offer.
func (s *BorrowService) Accept(ctx context.Context, sess session.Session, offerID snowflake.ID) (*models.BorrowAcceptance, error) {

	offer, err := s.candidateOffer(ctx, sess, offerID)
	if err != nil {
		return nil, err
	}

	booking := models.Booking{Record: models.Record{ID: s.node.Generate(), DemoSession: sess.Tag()}}
	acceptance, ok, err := s.borrows.Accept(ctx, offer.ID, offer.CandidateID, booking, utcNow())
	if err != nil {
		metrics.BorrowAcceptsCounter.WithLabelValues("error").Inc()
		return nil, failure("failed to accept borrow offer", err)
	}
	if !ok {
		return nil, s.acceptFailure(ctx, offer.ID)
	}

	metrics.BorrowAcceptsCounter.WithLabelValues("filled").Inc()
	log.Infof("borrow request %v filled by candidate %v, %d sibling offers closed",
		acceptance.Request.ID, acceptance.Offer.CandidateID, acceptance.Closed)
	s.bus.Publish(events.BorrowRequestFilledTopic, events.BorrowRequestFilled{Acceptance: *acceptance})
	return acceptance, nil
}

func (s *BorrowService) acceptFailure(ctx context.Context, offerID snowflake.ID) error {
	offer, err := s.borrows.GetOffer(ctx, offerID)
	if err != nil {
		return failure("failed to load borrow offer", err)
	}
	request, err := s.loadRequest(ctx, offer.RequestID)
	if err != nil {
		return err
	}

	switch {
	case request.Status == models.BorrowRequestFilled:
		metrics.BorrowAcceptsCounter.WithLabelValues("lost").Inc()
		blocking := snowflake.ID(0)
		if request.FilledByOfferID != nil {
			blocking = *request.FilledByOfferID
		}
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeConflict).
			Warnf("borrow offer %v lost the race for request %v", offerID, request.ID)
		return errs.NewConflict("this shift has already been filled", blocking)
	case offer.Status != models.BorrowOfferPending:
		metrics.BorrowAcceptsCounter.WithLabelValues("rejected").Inc()
		return errs.Newf(errs.InvalidStatus, "borrow offer is %s", offer.Status)
	case request.Status != models.BorrowRequestOpen:
		metrics.BorrowAcceptsCounter.WithLabelValues("rejected").Inc()
		return errs.Newf(errs.InvalidStatus, "borrow request is %s", request.Status)
	default:
		metrics.BorrowAcceptsCounter.WithLabelValues("overlap").Inc()
		return errs.New(errs.Conflict, "you are booked or unavailable during this shift")
	}
}

func (s *BorrowService) Decline(ctx context.Context, sess session.Session, offerID snowflake.ID) (*models.BorrowOffer, error) {

	offer, err := s.candidateOffer(ctx, sess, offerID)
	if err != nil {
		return nil, err
	}

	ok, err := s.borrows.Decline(ctx, offer.ID, offer.CandidateID, utcNow())
	if err != nil {
		return nil, failure("failed to decline borrow offer", err)
	}

	offer, err = s.borrows.GetOffer(ctx, offerID)
	if err != nil {
		return nil, failure("failed to load borrow offer", err)
	}
	if !ok {
		return nil, errs.Newf(errs.InvalidStatus, "borrow offer is %s", offer.Status)
	}
	return offer, nil
}

// Close ends an open request without a fill. Pending offers are closed with it.
func (s *BorrowService) Close(ctx context.Context, sess session.Session, requestID snowflake.ID) (*models.BorrowRequest, error) {

	if _, err := s.employerRequest(ctx, sess, requestID); err != nil {
		return nil, err
	}

	ok, err := s.borrows.Close(ctx, requestID, utcNow())
	if err != nil {
		return nil, failure("failed to close borrow request", err)
	}

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Newf(errs.InvalidStatus, "borrow request is %s", request.Status)
	}
	log.Infof("borrow request %v closed", request.ID)
	return request, nil
}

// ExpireRequests closes open requests whose window has ended. It is run by the scheduler.
func (s *BorrowService) ExpireRequests(ctx context.Context, now time.Time) (int64, error) {
	expired, err := s.borrows.ExpireRequests(ctx, now.UTC())
	if err != nil {
		return 0, failure("failed to expire borrow requests", err)
	}
	return expired, nil
}

func (s *BorrowService) GetRequest(ctx context.Context, sess session.Session, requestID snowflake.ID) (*models.BorrowRequest, error) {
	return s.employerRequest(ctx, sess, requestID)
}

func (s *BorrowService) ListOffersForRequest(ctx context.Context, sess session.Session,
	requestID snowflake.ID) ([]models.BorrowOffer, error) {

	if _, err := s.employerRequest(ctx, sess, requestID); err != nil {
		return nil, err
	}
	offers, err := s.borrows.ListOffersByRequest(ctx, requestID)
	return offers, failure("failed to list borrow offers", err)
}

func (s *BorrowService) ListOffersForCandidate(ctx context.Context, sess session.Session,
	statuses ...models.BorrowOfferStatus) ([]models.BorrowOffer, error) {

	candidateID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	offers, err := s.borrows.ListOffersByCandidate(ctx, candidateID, statuses)
	return offers, failure("failed to list borrow offers", err)
}

func (s *BorrowService) employerRequest(ctx context.Context, sess session.Session,
	requestID snowflake.ID) (*models.BorrowRequest, error) {

	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err = requireMember(ctx, s.memberships, request.OrgID, actorID); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *BorrowService) candidateOffer(ctx context.Context, sess session.Session, offerID snowflake.ID) (*models.BorrowOffer, error) {
	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	offer, err := s.borrows.GetOffer(ctx, offerID)
	if err != nil {
		return nil, failure("failed to load borrow offer", err)
	}
	if offer.CandidateID != actorID {
		return nil, errs.New(errs.Forbidden, "borrow offer is addressed to another candidate")
	}
	return offer, nil
}

func (s *BorrowService) loadRequest(ctx context.Context, requestID snowflake.ID) (*models.BorrowRequest, error) {
	request, err := s.borrows.GetRequest(ctx, requestID)
	if err != nil {
		return nil, failure("failed to load borrow request", err)
	}
	return request, nil
}
