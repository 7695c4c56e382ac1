package services

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
	"github.com/maxaizer/shiftmatch/internal/domain/events"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/maxaizer/shiftmatch/internal/metrics"
	"github.com/maxaizer/shiftmatch/internal/session"
	log "github.com/sirupsen/logrus"
)

type swipeRepository interface {
	Upsert(ctx context.Context, swipe models.Swipe) (*models.Swipe, error)
	HasYes(ctx context.Context, side models.Side, listingID, candidateID snowflake.ID) (bool, error)
}

type matchRepository interface {
	CreateIfAbsent(ctx context.Context, match models.Match) (*models.Match, bool, error)
	FindByPair(ctx context.Context, listingID, candidateID snowflake.ID) (*models.Match, error)
}

type candidateReader interface {
	GetByID(ctx context.Context, id snowflake.ID) (*models.Candidate, error)
}

type SwipeResult struct {
	// Swipe is nil when the pair was already matched and nothing was recorded.
	Swipe *models.Swipe
	Match *models.Match
	// Created is true only for the swipe that completed the match.
	Created bool
}

type SwipeEngine struct {
	bus         EventBus.Bus
	node        *snowflake.Node
	listings    listingReader
	candidates  candidateReader
	swipes      swipeRepository
	matches     matchRepository
	memberships membershipChecker
}

func NewSwipeEngine(bus EventBus.Bus, node *snowflake.Node, listings listingReader, candidates candidateReader,
	swipes swipeRepository, matches matchRepository, memberships membershipChecker) *SwipeEngine {

	return &SwipeEngine{
		bus:         bus,
		node:        node,
		listings:    listings,
		candidates:  candidates,
		swipes:      swipes,
		matches:     matches,
		memberships: memberships,
	}
}

// SwipeListing records a candidate's interest in a listing.
func (e *SwipeEngine) SwipeListing(ctx context.Context, sess session.Session, listingID snowflake.ID,
	direction models.Direction) (*SwipeResult, error) {

	candidateID, err := sess.Actor()
	if err != nil {
		return nil, err
	}

	listing, err := e.openListing(ctx, listingID, direction)
	if err != nil {
		return nil, err
	}
	if _, err = e.candidates.GetByID(ctx, candidateID); err != nil {
		return nil, failure("failed to load candidate profile", err)
	}

	return e.swipe(ctx, sess, models.SideTalent, candidateID, *listing, candidateID, direction)
}

// SwipeCandidate records an employer's interest in a candidate for one of the org's listings.
func (e *SwipeEngine) SwipeCandidate(ctx context.Context, sess session.Session, listingID, candidateID snowflake.ID,
	direction models.Direction) (*SwipeResult, error) {

	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}

	listing, err := e.openListing(ctx, listingID, direction)
	if err != nil {
		return nil, err
	}
	if err = requireMember(ctx, e.memberships, listing.OrgID, actorID); err != nil {
		return nil, err
	}
	if _, err = e.candidates.GetByID(ctx, candidateID); err != nil {
		return nil, failure("failed to load candidate", err)
	}

	return e.swipe(ctx, sess, models.SideEmployer, actorID, *listing, candidateID, direction)
}

func (e *SwipeEngine) openListing(ctx context.Context, listingID snowflake.ID, direction models.Direction) (*models.Listing, error) {
	if !direction.Valid() {
		return nil, errs.Newf(errs.Validation, "unknown swipe direction %q", direction)
	}

	listing, err := e.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, failure("failed to load listing", err)
	}
	if !listing.Open() {
		return nil, errs.Newf(errs.InvalidStatus, "listing is %s", listing.Status)
	}
	return listing, nil
}

// swipe upserts the swipe and, after a yes, completes the match when the other side already said yes.
// The upsert is committed before the opposite side is read, so of two concurrent yes swipes at least one
// sees the other; the unique pair index keeps the match single.
func (e *SwipeEngine) swipe(ctx context.Context, sess session.Session, side models.Side, actorID snowflake.ID,
	listing models.Listing, candidateID snowflake.ID, direction models.Direction) (*SwipeResult, error) {

	existing, err := e.matches.FindByPair(ctx, listing.ID, candidateID)
	if err != nil {
		return nil, failure("failed to look up match", err)
	}
	if existing != nil {
		return &SwipeResult{Match: existing}, nil
	}

	swipe, err := e.swipes.Upsert(ctx, models.Swipe{
		Record:      models.Record{ID: e.node.Generate(), DemoSession: sess.Tag()},
		Side:        side,
		ActorID:     actorID,
		ListingID:   listing.ID,
		CandidateID: candidateID,
		Direction:   direction,
	})
	if err != nil {
		return nil, failure("failed to record swipe", err)
	}
	metrics.SwipesCounter.WithLabelValues(string(side), string(direction)).Inc()

	result := &SwipeResult{Swipe: swipe}
	if direction != models.Yes {
		return result, nil
	}

	mutual, err := e.swipes.HasYes(ctx, side.Opposite(), listing.ID, candidateID)
	if err != nil {
		return nil, failure("failed to check opposite swipe", err)
	}
	if !mutual {
		return result, nil
	}

	match, created, err := e.matches.CreateIfAbsent(ctx, models.Match{
		Record:      models.Record{ID: e.node.Generate(), DemoSession: sess.Tag()},
		OrgID:       listing.OrgID,
		ListingID:   listing.ID,
		CandidateID: candidateID,
		Status:      models.MatchMatched,
	})
	if err != nil {
		return nil, failure("failed to create match", err)
	}

	result.Match = match
	result.Created = created
	if created {
		metrics.MatchesCounter.Inc()
		log.Infof("match %v created for listing %v and candidate %v", match.ID, listing.ID, candidateID)
		e.bus.Publish(events.MatchCreatedTopic, events.MatchCreated{Match: *match})
	}
	return result, nil
}
