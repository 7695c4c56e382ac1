package services

import (
	"context"
	"fmt"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/maxaizer/shiftmatch/internal/ranking"
	"github.com/maxaizer/shiftmatch/internal/session"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"strconv"
)

type StackKind string

const (
	ListingStack   StackKind = "listings"
	CandidateStack StackKind = "candidates"
)

type listingFeed interface {
	GetByID(ctx context.Context, id snowflake.ID) (*models.Listing, error)
	ListUnswiped(ctx context.Context, candidateID snowflake.ID, filter models.ListingFilter) ([]models.Listing, error)
}

type candidateFeed interface {
	ListUnswipedForListing(ctx context.Context, actorID snowflake.ID, listing models.Listing, limit int) ([]models.Candidate, error)
}

type feedScorer interface {
	ScoreListings(ctx context.Context, candidateID snowflake.ID, listingIDs []snowflake.ID) []ranking.Score
	ScoreCandidates(ctx context.Context, listingID snowflake.ID, candidateIDs []snowflake.ID) []ranking.Score
}

// FeedService serves swipe feeds through per-user ranked stacks.
type FeedService struct {
	listings    listingFeed
	candidates  candidateFeed
	memberships membershipChecker
	scoring     feedScorer
	stacks      *ranking.Manager
}

func NewFeedService(listings listingFeed, candidates candidateFeed, memberships membershipChecker,
	scoring feedScorer, stacks *ranking.Manager) *FeedService {

	return &FeedService{
		listings:    listings,
		candidates:  candidates,
		memberships: memberships,
		scoring:     scoring,
		stacks:      stacks,
	}
}

// CandidateFeed returns the listings left in the candidate's stack for the given filters.
func (f *FeedService) CandidateFeed(ctx context.Context, sess session.Session, filter models.ListingFilter) ([]ranking.Item, error) {

	candidateID, err := sess.Actor()
	if err != nil {
		return nil, err
	}

	key := ranking.ContextKey(modeOf(sess), map[string]string{
		"location": models.NormalizeLocation(filter.Location),
		"role":     filter.Role,
		"kind":     string(filter.Kind),
		"from":     dateOrEmpty(filter),
		"limit":    strconv.Itoa(filter.Limit),
	})
	stack := f.stacks.Get(stackOwner(candidateID, ListingStack))

	if !stack.Current(key) {
		listings, err := f.listings.ListUnswiped(ctx, candidateID, filter)
		if err != nil {
			return nil, failure("failed to load listings feed", err)
		}
		stack.Build(key, lo.Map(listings, func(l models.Listing, _ int) snowflake.ID { return l.ID }))
	}

	if unscored := stack.Unscored(); len(unscored) > 0 {
		stack.ApplyScores(f.scoring.ScoreListings(ctx, candidateID, unscored))
	}
	return stack.Items(), nil
}

// EmployerFeed returns the candidates left in the employer's stack for one listing.
func (f *FeedService) EmployerFeed(ctx context.Context, sess session.Session, listingID snowflake.ID,
	limit int) ([]ranking.Item, error) {

	actorID, err := sess.Actor()
	if err != nil {
		return nil, err
	}
	listing, err := f.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, failure("failed to load listing", err)
	}
	if err = requireMember(ctx, f.memberships, listing.OrgID, actorID); err != nil {
		return nil, err
	}

	key := ranking.ContextKey(modeOf(sess), map[string]string{
		"listing": listing.ID.String(),
		"limit":   strconv.Itoa(limit),
	})
	stack := f.stacks.Get(stackOwner(actorID, CandidateStack))

	if !stack.Current(key) {
		candidates, err := f.candidates.ListUnswipedForListing(ctx, actorID, *listing, limit)
		if err != nil {
			return nil, failure("failed to load candidates feed", err)
		}
		stack.Build(key, lo.Map(candidates, func(c models.Candidate, _ int) snowflake.ID { return c.ID }))
	}

	if unscored := stack.Unscored(); len(unscored) > 0 {
		stack.ApplyScores(f.scoring.ScoreCandidates(ctx, listing.ID, unscored))
	}
	return stack.Items(), nil
}

// Swiped pops the swiped item. A swipe on anything but the top item means the client and the stack
// disagree, and the stack is rebuilt on the next read.
func (f *FeedService) Swiped(sess session.Session, kind StackKind, itemID snowflake.ID) error {
	actorID, err := sess.Actor()
	if err != nil {
		return err
	}

	stack := f.stacks.Get(stackOwner(actorID, kind))
	if top, ok := stack.Top(); ok && top.ID == itemID {
		stack.RemoveTop()
		return nil
	}

	log.Debugf("swiped item %v is not on top of %s stack of %v, invalidating", itemID, kind, actorID)
	stack.Invalidate()
	return nil
}

// Reset discards the stack after a failed swipe so the next read reloads it.
func (f *FeedService) Reset(sess session.Session, kind StackKind) error {
	actorID, err := sess.Actor()
	if err != nil {
		return err
	}
	f.stacks.Get(stackOwner(actorID, kind)).Invalidate()
	return nil
}

func stackOwner(userID snowflake.ID, kind StackKind) string {
	return fmt.Sprintf("%d:%s", userID, kind)
}

func modeOf(sess session.Session) string {
	if sess.IsDemo() {
		return string(session.Demo) + ":" + sess.DemoSessionID
	}
	return string(session.Live)
}

func dateOrEmpty(filter models.ListingFilter) string {
	if filter.From.IsZero() {
		return ""
	}
	return filter.From.UTC().Format("2006-01-02")
}
