package services

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
	"github.com/maxaizer/shiftmatch/internal/domain/events"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/maxaizer/shiftmatch/internal/session"
	log "github.com/sirupsen/logrus"
	"strings"
	"time"
)

type circleRepository interface {
	AddLink(ctx context.Context, link models.CircleLink) (bool, error)
	GetLink(ctx context.Context, id snowflake.ID) (*models.CircleLink, error)
	FindActiveLink(ctx context.Context, orgA, orgB snowflake.ID) (*models.CircleLink, error)
	Respond(ctx context.Context, linkID, targetOrgID, actorID snowflake.ID, status models.CircleLinkStatus, now time.Time) (bool, error)
	IsTrusted(ctx context.Context, orgA, orgB snowflake.ID) (bool, error)
	TrustedPartners(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error)
	ListPendingFor(ctx context.Context, orgID snowflake.ID) ([]models.CircleLink, error)
	AddCircle(ctx context.Context, circle models.Circle) (bool, error)
	GetCircle(ctx context.Context, id snowflake.ID) (*models.Circle, error)
	AddMember(ctx context.Context, member models.CircleMember) error
	RemoveMember(ctx context.Context, circleID, orgID snowflake.ID) (bool, error)
	MemberOrgs(ctx context.Context, circleID snowflake.ID) ([]snowflake.ID, error)
}

type orgReader interface {
	GetOrg(ctx context.Context, id snowflake.ID) (*models.Org, error)
}

// CircleService maintains trust between organizations. Only accepted links widen borrow pools.
type CircleService struct {
	bus         EventBus.Bus
	node        *snowflake.Node
	circles     circleRepository
	orgs        orgReader
	memberships membershipChecker
}

func NewCircleService(bus EventBus.Bus, node *snowflake.Node, circles circleRepository, orgs orgReader,
	memberships membershipChecker) *CircleService {

	return &CircleService{bus: bus, node: node, circles: circles, orgs: orgs, memberships: memberships}
}

func (s *CircleService) Invite(ctx context.Context, sess session.Session, fromOrgID, toOrgID snowflake.ID) (*models.CircleLink, error) {

	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	if fromOrgID == toOrgID {
		return nil, errs.New(errs.Validation, "an organization can't invite itself")
	}
	if err = requireMember(ctx, s.memberships, fromOrgID, actorID); err != nil {
		return nil, err
	}
	if _, err = s.orgs.GetOrg(ctx, toOrgID); err != nil {
		return nil, failure("failed to load organization", err)
	}

	link := models.CircleLink{
		Record:          models.Record{ID: s.node.Generate(), DemoSession: sess.Tag()},
		RequestingOrgID: fromOrgID,
		TargetOrgID:     toOrgID,
		Status:          models.CircleLinkPending,
		InvitedBy:       actorID,
	}
	created, err := s.circles.AddLink(ctx, link)
	if err != nil {
		return nil, failure("failed to create invitation", err)
	}
	if !created {
		return nil, s.inviteConflict(ctx, fromOrgID, toOrgID)
	}

	stored, err := s.loadLink(ctx, link.ID)
	if err != nil {
		return nil, err
	}
	log.Infof("org %v invited org %v to its circle", fromOrgID, toOrgID)
	s.bus.Publish(events.CircleInviteTopic, events.CircleInvite{Link: *stored})
	return stored, nil
}

func (s *CircleService) inviteConflict(ctx context.Context, fromOrgID, toOrgID snowflake.ID) error {
	existing, err := s.circles.FindActiveLink(ctx, fromOrgID, toOrgID)
	if err != nil {
		return failure("failed to look up existing link", err)
	}
	if existing == nil {
		return errs.New(errs.Unknown, "invitation could not be created, please try again")
	}
	if existing.Status == models.CircleLinkAccepted {
		return errs.NewConflict("these organizations already trust each other", existing.ID)
	}
	return errs.NewConflict("an invitation between these organizations is already pending", existing.ID)
}

func (s *CircleService) Accept(ctx context.Context, sess session.Session, linkID snowflake.ID) (*models.CircleLink, error) {
	return s.respond(ctx, sess, linkID, models.CircleLinkAccepted)
}

func (s *CircleService) Decline(ctx context.Context, sess session.Session, linkID snowflake.ID) (*models.CircleLink, error) {
	return s.respond(ctx, sess, linkID, models.CircleLinkDeclined)
}

func (s *CircleService) respond(ctx context.Context, sess session.Session, linkID snowflake.ID,
	status models.CircleLinkStatus) (*models.CircleLink, error) {

	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	link, err := s.loadLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if err = requireMember(ctx, s.memberships, link.TargetOrgID, actorID); err != nil {
		if errs.Is(err, errs.Forbidden) {
			return nil, errs.New(errs.Forbidden, "only the invited organization can answer this invitation")
		}
		return nil, err
	}

	ok, err := s.circles.Respond(ctx, link.ID, link.TargetOrgID, actorID, status, utcNow())
	if err != nil {
		return nil, failure("failed to answer invitation", err)
	}

	link, err = s.loadLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Newf(errs.InvalidStatus, "invitation is already %s", link.Status)
	}

	log.Infof("org %v %s the circle invitation of org %v", link.TargetOrgID, link.Status, link.RequestingOrgID)
	return link, nil
}

// IsTrusted is true iff an accepted link exists between the orgs in either direction.
func (s *CircleService) IsTrusted(ctx context.Context, orgA, orgB snowflake.ID) (bool, error) {
	trusted, err := s.circles.IsTrusted(ctx, orgA, orgB)
	return trusted, failure("failed to check trust", err)
}

func (s *CircleService) TrustedPartners(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error) {
	partners, err := s.circles.TrustedPartners(ctx, orgID)
	return partners, failure("failed to load trusted partners", err)
}

func (s *CircleService) PendingInvites(ctx context.Context, sess session.Session, orgID snowflake.ID) ([]models.CircleLink, error) {
	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	if err = requireMember(ctx, s.memberships, orgID, actorID); err != nil {
		return nil, err
	}
	links, err := s.circles.ListPendingFor(ctx, orgID)
	return links, failure("failed to load invitations", err)
}

// CreateCircle adds a named grouping of partners owned by ownerOrgID. Names are unique per owner by slug.
func (s *CircleService) CreateCircle(ctx context.Context, sess session.Session, ownerOrgID snowflake.ID,
	name string) (*models.Circle, error) {

	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	if err = requireMember(ctx, s.memberships, ownerOrgID, actorID); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	circleSlug := slug.Make(name)
	if circleSlug == "" {
		return nil, errs.New(errs.Validation, "circle name is required")
	}

	circle := models.Circle{
		Record:     models.Record{ID: s.node.Generate(), DemoSession: sess.Tag()},
		OwnerOrgID: ownerOrgID,
		Name:       name,
		Slug:       circleSlug,
	}
	created, err := s.circles.AddCircle(ctx, circle)
	if err != nil {
		return nil, failure("failed to create circle", err)
	}
	if !created {
		return nil, errs.Newf(errs.Conflict, "a circle named %q already exists", name)
	}
	return s.loadCircle(ctx, circle.ID)
}

// AddMember puts a trusted partner of the owner into the circle.
func (s *CircleService) AddMember(ctx context.Context, sess session.Session, circleID, orgID snowflake.ID) error {

	circle, err := s.ownedCircle(ctx, sess, circleID)
	if err != nil {
		return err
	}
	if orgID == circle.OwnerOrgID {
		return errs.New(errs.Validation, "the owner is always part of its circle")
	}

	trusted, err := s.circles.IsTrusted(ctx, circle.OwnerOrgID, orgID)
	if err != nil {
		return failure("failed to check trust", err)
	}
	if !trusted {
		return errs.New(errs.Validation, "only trusted partners can join a circle")
	}

	err = s.circles.AddMember(ctx, models.CircleMember{
		Record:   models.Record{ID: s.node.Generate(), DemoSession: sess.Tag()},
		CircleID: circle.ID,
		OrgID:    orgID,
	})
	return failure("failed to add circle member", err)
}

func (s *CircleService) RemoveMember(ctx context.Context, sess session.Session, circleID, orgID snowflake.ID) error {

	circle, err := s.ownedCircle(ctx, sess, circleID)
	if err != nil {
		return err
	}

	removed, err := s.circles.RemoveMember(ctx, circle.ID, orgID)
	if err != nil {
		return failure("failed to remove circle member", err)
	}
	if !removed {
		return errs.New(errs.NotFound, "organization is not part of this circle")
	}
	return nil
}

func (s *CircleService) Members(ctx context.Context, sess session.Session, circleID snowflake.ID) ([]snowflake.ID, error) {
	circle, err := s.ownedCircle(ctx, sess, circleID)
	if err != nil {
		return nil, err
	}
	members, err := s.circles.MemberOrgs(ctx, circle.ID)
	return members, failure("failed to load circle members", err)
}

func (s *CircleService) ownedCircle(ctx context.Context, sess session.Session, circleID snowflake.ID) (*models.Circle, error) {
	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	circle, err := s.loadCircle(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if err = requireMember(ctx, s.memberships, circle.OwnerOrgID, actorID); err != nil {
		return nil, err
	}
	return circle, nil
}

func (s *CircleService) loadCircle(ctx context.Context, id snowflake.ID) (*models.Circle, error) {
	circle, err := s.circles.GetCircle(ctx, id)
	if err != nil {
		return nil, failure("failed to load circle", err)
	}
	return circle, nil
}

func (s *CircleService) loadLink(ctx context.Context, id snowflake.ID) (*models.CircleLink, error) {
	link, err := s.circles.GetLink(ctx, id)
	if err != nil {
		return nil, failure("failed to load invitation", err)
	}
	return link, nil
}
