package services

import (
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
	"github.com/maxaizer/shiftmatch/internal/domain/events"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/maxaizer/shiftmatch/internal/logger"
	"github.com/maxaizer/shiftmatch/internal/metrics"
	"github.com/maxaizer/shiftmatch/internal/session"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"strings"
	"time"
)

type offerRepository interface {
	Add(ctx context.Context, offer models.Offer) error
	GetByID(ctx context.Context, id snowflake.ID) (*models.Offer, error)
	Send(ctx context.Context, id snowflake.ID, now, expiresAt time.Time) (bool, error)
	FindActive(ctx context.Context, offer models.Offer) (*models.Offer, error)
	Transition(ctx context.Context, id snowflake.ID, from []models.OfferStatus, to models.OfferStatus, now time.Time) (bool, error)
	Accept(ctx context.Context, offer models.Offer, match models.Match, booking models.Booking,
		now time.Time) (*models.Offer, bool, error)
	Decline(ctx context.Context, id, candidateID snowflake.ID, now time.Time) (bool, error)
	ExpireSent(ctx context.Context, now time.Time) (int64, error)
	ListByCandidate(ctx context.Context, candidateID snowflake.ID, statuses []models.OfferStatus) ([]models.Offer, error)
	ListByOrg(ctx context.Context, orgID snowflake.ID, statuses []models.OfferStatus) ([]models.Offer, error)
}

type matchReader interface {
	GetByID(ctx context.Context, id snowflake.ID) (*models.Match, error)
}

type DraftRequest struct {
	OrgID       snowflake.ID
	CandidateID snowflake.ID
	MatchID     *snowflake.ID
	ListingID   *snowflake.ID
	Payload     models.OfferPayload
}

// OfferResolution is returned by Respond. Booking is set only for accepted offers.
type OfferResolution struct {
	Offer   models.Offer
	Booking *models.Booking
}

type OfferService struct {
	bus         EventBus.Bus
	node        *snowflake.Node
	offers      offerRepository
	matches     matchReader
	listings    listingReader
	candidates  candidateReader
	memberships membershipChecker
	validate    *validator.Validate
	ttl         time.Duration
}

func NewOfferService(bus EventBus.Bus, node *snowflake.Node, offers offerRepository, matches matchReader,
	listings listingReader, candidates candidateReader, memberships membershipChecker, ttl time.Duration) *OfferService {

	return &OfferService{
		bus:         bus,
		node:        node,
		offers:      offers,
		matches:     matches,
		listings:    listings,
		candidates:  candidates,
		memberships: memberships,
		validate:    validator.New(),
		ttl:         ttl,
	}
}

func (s *OfferService) CreateDraft(ctx context.Context, sess session.Session, request DraftRequest) (*models.Offer, error) {

	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	if err = requireMember(ctx, s.memberships, request.OrgID, actorID); err != nil {
		return nil, err
	}
	if _, err = s.candidates.GetByID(ctx, request.CandidateID); err != nil {
		return nil, failure("failed to load candidate", err)
	}

	listingID := request.ListingID
	if request.MatchID != nil {
		match, err := s.matches.GetByID(ctx, *request.MatchID)
		if err != nil {
			return nil, failure("failed to load match", err)
		}
		if match.OrgID != request.OrgID || match.CandidateID != request.CandidateID {
			return nil, errs.New(errs.Forbidden, "match does not belong to this organization and candidate")
		}
		if listingID != nil && *listingID != match.ListingID {
			return nil, errs.New(errs.Validation, "listing does not match the one of the match")
		}
		listingID = &match.ListingID
	}
	if listingID == nil {
		return nil, errs.New(errs.Validation, "an offer needs a match or a listing")
	}

	listing, err := s.listings.GetByID(ctx, *listingID)
	if err != nil {
		return nil, failure("failed to load listing", err)
	}
	if listing.OrgID != request.OrgID {
		return nil, errs.New(errs.Forbidden, "listing belongs to another organization")
	}
	if err = s.validatePayload(request.Payload, listing.Kind); err != nil {
		return nil, err
	}

	payload := request.Payload
	payload.StartDate = payload.StartDate.UTC()
	if payload.EndDate != nil {
		end := payload.EndDate.UTC()
		payload.EndDate = &end
	}

	offer := models.Offer{
		Record:      models.Record{ID: s.node.Generate(), DemoSession: sess.Tag()},
		OrgID:       request.OrgID,
		CandidateID: request.CandidateID,
		MatchID:     request.MatchID,
		ListingID:   listingID,
		SubjectKey:  models.OfferSubjectKey(request.MatchID, listingID),
		Status:      models.OfferDraft,
		CreatedBy:   actorID,
		Payload:     payload,
	}
	if err = s.offers.Add(ctx, offer); err != nil {
		return nil, failure("failed to create offer", err)
	}

	metrics.OfferTransitionsCounter.WithLabelValues(string(models.OfferDraft)).Inc()
	return s.reload(ctx, offer.ID)
}

func (s *OfferService) validatePayload(payload models.OfferPayload, kind models.ListingKind) error {

	if err := s.validate.Struct(payload); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			fields := make([]string, 0, len(fieldErrors))
			for _, fieldError := range fieldErrors {
				fields = append(fields, strings.ToLower(fieldError.Field()))
			}
			return errs.Newf(errs.Validation, "invalid offer fields: %s", strings.Join(fields, ", "))
		}
		return errs.Wrap(errs.Validation, "invalid offer", err)
	}

	if payload.EndDate != nil && !payload.EndDate.After(payload.StartDate) {
		return errs.New(errs.Validation, "end date must be after start date")
	}

	if kind == models.ListingShiftCover {
		if payload.EndDate == nil {
			return errs.New(errs.Validation, "a shift cover offer needs an end date")
		}
		if payload.HourlyPay <= 0 {
			return errs.New(errs.Validation, "a shift cover offer needs an hourly pay")
		}
	}
	return nil
}

// Send moves a draft to sent. It fails with a conflict naming the blocking offer when another offer
// for the same org, candidate and listing is sent or accepted.
func (s *OfferService) Send(ctx context.Context, sess session.Session, offerID snowflake.ID) (*models.Offer, error) {

	offer, err := s.employerOffer(ctx, sess, offerID)
	if err != nil {
		return nil, err
	}

	now := utcNow()
	sent, err := s.offers.Send(ctx, offerID, now, now.Add(s.ttl))
	if err != nil {
		return nil, failure("failed to send offer", err)
	}
	if !sent {
		return nil, s.sendFailure(ctx, *offer)
	}

	offer, err = s.reload(ctx, offerID)
	if err != nil {
		return nil, err
	}

	metrics.OfferTransitionsCounter.WithLabelValues(string(models.OfferSent)).Inc()
	log.Infof("offer %v sent to candidate %v", offer.ID, offer.CandidateID)
	s.bus.Publish(events.OfferSentTopic, events.OfferSent{Offer: *offer})
	return offer, nil
}

func (s *OfferService) sendFailure(ctx context.Context, offer models.Offer) error {
	current, err := s.reload(ctx, offer.ID)
	if err != nil {
		return err
	}
	if current.Status != models.OfferDraft {
		return errs.Newf(errs.InvalidStatus, "offer is %s and can't be sent", current.Status)
	}

	blocking, err := s.offers.FindActive(ctx, *current)
	if err != nil {
		return failure("failed to look up active offer", err)
	}
	if blocking == nil {
		return errs.New(errs.Unknown, "offer could not be sent, please try again")
	}

	metrics.OfferConflictsCounter.Inc()
	log.WithField(logger.ErrorTypeField, logger.ErrorTypeConflict).
		Warnf("offer %v blocked by %s offer %v", offer.ID, blocking.Status, blocking.ID)
	return errs.NewConflict(fmt.Sprintf("an offer is already %s for this candidate and listing", blocking.Status), blocking.ID)
}

// Respond lets the addressed candidate accept or decline a sent offer. Accepting confirms the match
// and books the candidate in one transaction.
func (s *OfferService) Respond(ctx context.Context, sess session.Session, offerID snowflake.ID,
	accept bool) (*OfferResolution, error) {

	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}

	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, failure("failed to load offer", err)
	}
	if offer.CandidateID != actorID {
		return nil, errs.New(errs.Forbidden, "offer is addressed to another candidate")
	}
	now := utcNow()
	if err = respondable(*offer, now); err != nil {
		return nil, err
	}

	resolution := &OfferResolution{}

	if accept {
		listing, err := s.listings.GetByID(ctx, *offer.ListingID)
		if err != nil {
			return nil, failure("failed to load listing", err)
		}

		booking := s.bookingFor(sess, *offer, *listing)
		match := models.Match{
			Record:      models.Record{ID: s.node.Generate(), DemoSession: sess.Tag()},
			OrgID:       offer.OrgID,
			ListingID:   listing.ID,
			CandidateID: offer.CandidateID,
			Status:      models.MatchMatched,
		}

		accepted, ok, err := s.offers.Accept(ctx, *offer, match, booking, now)
		if err != nil {
			return nil, failure("failed to accept offer", err)
		}
		if !ok {
			return nil, s.statusFailure(ctx, offerID, now)
		}
		resolution.Offer = *accepted
		resolution.Booking = &booking
	} else {
		ok, err := s.offers.Decline(ctx, offerID, offer.CandidateID, now)
		if err != nil {
			return nil, failure("failed to decline offer", err)
		}
		if !ok {
			return nil, s.statusFailure(ctx, offerID, now)
		}
		declined, err := s.reload(ctx, offerID)
		if err != nil {
			return nil, err
		}
		resolution.Offer = *declined
	}

	s.resolved(resolution.Offer, resolution.Booking)
	return resolution, nil
}

func (s *OfferService) bookingFor(sess session.Session, offer models.Offer, listing models.Listing) models.Booking {
	start := offer.Payload.StartDate.UTC()
	end := listing.EndDate.UTC()
	if offer.Payload.EndDate != nil {
		end = offer.Payload.EndDate.UTC()
	}
	if !end.After(start) {
		end = start.Add(24 * time.Hour)
	}

	return models.Booking{
		Record:      models.Record{ID: s.node.Generate(), DemoSession: sess.Tag()},
		OrgID:       offer.OrgID,
		CandidateID: offer.CandidateID,
		StartsAt:    start,
		EndsAt:      end,
		Source:      models.BookingFromOffer,
		SourceID:    offer.ID,
	}
}

// Withdraw is employer-initiated and only allowed while the offer is a draft or sent.
func (s *OfferService) Withdraw(ctx context.Context, sess session.Session, offerID snowflake.ID) (*models.Offer, error) {

	if _, err := s.employerOffer(ctx, sess, offerID); err != nil {
		return nil, err
	}

	ok, err := s.offers.Transition(ctx, offerID, []models.OfferStatus{models.OfferDraft, models.OfferSent},
		models.OfferWithdrawn, utcNow())
	if err != nil {
		return nil, failure("failed to withdraw offer", err)
	}
	if !ok {
		return nil, s.statusFailure(ctx, offerID, utcNow())
	}

	offer, err := s.reload(ctx, offerID)
	if err != nil {
		return nil, err
	}
	s.resolved(*offer, nil)
	return offer, nil
}

// Expire moves sent offers past their deadline to expired. It is run by the scheduler, not by users.
func (s *OfferService) Expire(ctx context.Context, now time.Time) (int64, error) {
	expired, err := s.offers.ExpireSent(ctx, now.UTC())
	if err != nil {
		return 0, failure("failed to expire offers", err)
	}
	if expired > 0 {
		metrics.OfferTransitionsCounter.WithLabelValues(string(models.OfferExpired)).Add(float64(expired))
	}
	return expired, nil
}

// Get returns the offer to its candidate or to members of the issuing org.
func (s *OfferService) Get(ctx context.Context, sess session.Session, offerID snowflake.ID) (*models.Offer, error) {
	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}

	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, failure("failed to load offer", err)
	}
	if offer.CandidateID == actorID {
		return offer, nil
	}
	if err = requireMember(ctx, s.memberships, offer.OrgID, actorID); err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *OfferService) ListForCandidate(ctx context.Context, sess session.Session,
	statuses ...models.OfferStatus) ([]models.Offer, error) {

	candidateID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	offers, err := s.offers.ListByCandidate(ctx, candidateID, statuses)
	return offers, failure("failed to list offers", err)
}

func (s *OfferService) ListForOrg(ctx context.Context, sess session.Session, orgID snowflake.ID,
	statuses ...models.OfferStatus) ([]models.Offer, error) {

	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	if err = requireMember(ctx, s.memberships, orgID, actorID); err != nil {
		return nil, err
	}
	offers, err := s.offers.ListByOrg(ctx, orgID, statuses)
	return offers, failure("failed to list offers", err)
}

func (s *OfferService) employerOffer(ctx context.Context, sess session.Session, offerID snowflake.ID) (*models.Offer, error) {
	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}

	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, failure("failed to load offer", err)
	}
	if err = requireMember(ctx, s.memberships, offer.OrgID, actorID); err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *OfferService) statusFailure(ctx context.Context, offerID snowflake.ID, now time.Time) error {
	offer, err := s.reload(ctx, offerID)
	if err != nil {
		return err
	}
	if err = respondable(*offer, now); err != nil {
		return err
	}
	return errs.Newf(errs.InvalidStatus, "offer is %s", offer.Status)
}

// respondable rejects offers that are not sent, and sent offers whose deadline passed before the expirer ran.
func respondable(offer models.Offer, now time.Time) error {
	if offer.Status != models.OfferSent {
		return errs.Newf(errs.InvalidStatus, "offer is %s", offer.Status)
	}
	if offer.ExpiresAt != nil && !offer.ExpiresAt.After(now) {
		return errs.New(errs.InvalidStatus, "offer expired")
	}
	return nil
}

func (s *OfferService) reload(ctx context.Context, offerID snowflake.ID) (*models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, failure("failed to load offer", err)
	}
	return offer, nil
}

func (s *OfferService) resolved(offer models.Offer, booking *models.Booking) {
	metrics.OfferTransitionsCounter.WithLabelValues(string(offer.Status)).Inc()
	log.Infof("offer %v is now %s", offer.ID, offer.Status)

	event := events.OfferResolved{Offer: offer}
	if booking != nil {
		event.BookingID = booking.ID
	}
	s.bus.Publish(events.OfferResolvedTopic, event)
}
