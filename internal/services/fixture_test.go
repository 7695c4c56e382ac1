package services

import (
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/config"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/maxaizer/shiftmatch/internal/repositories"
	"github.com/maxaizer/shiftmatch/internal/session"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"strings"
	"sync"
	"testing"
	"time"
)

// fixture wires every service against a private in-memory database.
type fixture struct {
	t    *testing.T
	ctx  context.Context
	db   *gorm.DB
	node *snowflake.Node
	bus  EventBus.Bus

	memberships *repositories.Memberships
	candidates  *repositories.Candidates
	listings    *repositories.Listings
	matches     *repositories.Matches
	bookings    *repositories.Bookings
	borrowRepo  *repositories.Borrows

	tracker *JobTracker
	swipes  *SwipeEngine
	offers  *OfferService
	borrows *BorrowService
	circles *CircleService

	mu        sync.Mutex
	published map[string]int
}

var fixtureTopics = []string{
	"MatchCreatedEvent", "OfferSentEvent", "OfferResolvedEvent",
	"BorrowOfferReceivedEvent", "BorrowRequestFilledEvent", "CircleInviteEvent",
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbCtx, err := repositories.NewDbContext(config.DBConfig{
		Driver:           config.DriverSqlite,
		ConnectionString: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	require.NoError(t, dbCtx.Migrate())
	t.Cleanup(func() { _ = dbCtx.Close() })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := &fixture{
		t:           t,
		ctx:         context.Background(),
		db:          dbCtx.DB,
		node:        node,
		bus:         EventBus.New(),
		memberships: repositories.NewMembershipsRepository(dbCtx.DB),
		candidates:  repositories.NewCandidatesRepository(dbCtx.DB),
		listings:    repositories.NewListingsRepository(dbCtx.DB),
		matches:     repositories.NewMatchesRepository(dbCtx.DB),
		bookings:    repositories.NewBookingsRepository(dbCtx.DB),
		borrowRepo:  repositories.NewBorrowsRepository(dbCtx.DB),
		published:   map[string]int{},
	}

	for _, topic := range fixtureTopics {
		topic := topic
		require.NoError(t, f.bus.Subscribe(topic, func(any) {
			f.mu.Lock()
			f.published[topic]++
			f.mu.Unlock()
		}))
	}

	cachedMemberships := repositories.NewCachedMemberships(f.memberships, time.Minute)
	circleRepo := repositories.NewCirclesRepository(dbCtx.DB)

	f.tracker = NewJobTracker(node, repositories.NewJobStatesRepository(dbCtx.DB), f.listings)
	f.swipes = NewSwipeEngine(f.bus, node, f.listings, f.candidates, repositories.NewSwipesRepository(dbCtx.DB),
		f.matches, cachedMemberships)
	f.offers = NewOfferService(f.bus, node, repositories.NewOffersRepository(dbCtx.DB), f.matches, f.listings,
		f.candidates, cachedMemberships, 72*time.Hour)
	f.borrows = NewBorrowService(f.bus, node, f.borrowRepo, f.candidates, circleRepo, cachedMemberships)
	f.circles = NewCircleService(f.bus, node, circleRepo, f.memberships, cachedMemberships)
	return f
}

func (f *fixture) events(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[topic]
}

// org creates an organization with one owner and returns both ids.
func (f *fixture) org(name string) (orgID snowflake.ID, owner session.Session) {
	orgID = f.node.Generate()
	require.NoError(f.t, f.memberships.AddOrg(f.ctx, models.Org{Record: models.Record{ID: orgID}, Name: name}))

	userID := f.node.Generate()
	require.NoError(f.t, f.memberships.AddMember(f.ctx, models.OrgMember{
		Record: models.Record{ID: f.node.Generate()},
		OrgID:  orgID,
		UserID: userID,
		Role:   models.RoleOwner,
	}))
	return orgID, session.NewLive(userID)
}

func (f *fixture) candidate(name, location string, visibility models.Visibility) session.Session {
	userID := f.node.Generate()
	require.NoError(f.t, f.candidates.Save(f.ctx, models.NewCandidate(userID, name, location, visibility)))
	return session.NewLive(userID)
}

func (f *fixture) listing(orgID snowflake.ID, kind models.ListingKind, role, location string) models.Listing {
	listing := models.Listing{
		Record:    models.Record{ID: f.node.Generate()},
		OrgID:     orgID,
		Kind:      kind,
		Role:      role,
		Location:  location,
		StartDate: date(2025, 6, 1),
		EndDate:   date(2025, 8, 31),
		Status:    models.ListingPublished,
	}
	require.NoError(f.t, f.listings.Add(f.ctx, listing))
	return listing
}

// match runs both swipes so the candidate and listing end up matched.
func (f *fixture) match(employer, candidate session.Session, listing models.Listing) models.Match {
	_, err := f.swipes.SwipeListing(f.ctx, candidate, listing.ID, models.Yes)
	require.NoError(f.t, err)
	result, err := f.swipes.SwipeCandidate(f.ctx, employer, listing.ID, candidate.UserID, models.Yes)
	require.NoError(f.t, err)
	require.NotNil(f.t, result.Match)
	return *result.Match
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
