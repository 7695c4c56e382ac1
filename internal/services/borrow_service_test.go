package services

import (
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
	"github.com/maxaizer/shiftmatch/internal/domain/events"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/maxaizer/shiftmatch/internal/session"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

var shiftWindow = models.TimeWindow{
	Start: time.Date(2025, 7, 12, 16, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 7, 13, 2, 0, 0, 0, time.UTC),
}

func (f *fixture) borrowRequest(sess session.Session, orgID snowflake.ID, scope models.BorrowScope,
	circleID *snowflake.ID) *models.BorrowRequest {

	request, err := f.borrows.CreateRequest(f.ctx, sess, RequestInput{
		OrgID:    orgID,
		Location: "Visby",
		Role:     "bartender",
		Window:   shiftWindow,
		Scope:    scope,
		CircleID: circleID,
	})
	require.NoError(f.t, err)
	return request
}

// trust links two orgs with an accepted circle link.
func (f *fixture) trust(fromEmployer session.Session, fromOrg snowflake.ID, toEmployer session.Session, toOrg snowflake.ID) {
	link, err := f.circles.Invite(f.ctx, fromEmployer, fromOrg, toOrg)
	require.NoError(f.t, err)
	_, err = f.circles.Accept(f.ctx, toEmployer, link.ID)
	require.NoError(f.t, err)
}

func candidateIDs(candidates []models.Candidate) []snowflake.ID {
	return lo.Map(candidates, func(c models.Candidate, _ int) snowflake.ID { return c.ID })
}

func Test_FanOut_WithEmptyInternalPool_KeepsRequestOpen(t *testing.T) {
	f := newFixture(t)
	orgID, employer := f.org("Visby Hamn")
	// a local candidate without a match is not part of the internal pool
	f.candidate("Alva", "Visby", models.VisibilityPublic)

	request := f.borrowRequest(employer, orgID, models.ScopeInternal, nil)

	offers, err := f.borrows.FanOut(f.ctx, employer, request.ID)
	require.NoError(t, err)
	assert.Empty(t, offers)

	stored, err := f.borrows.GetRequest(f.ctx, employer, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowRequestOpen, stored.Status)
	assert.Zero(t, f.events(events.BorrowOfferReceivedTopic))
}

func Test_ConcurrentAccepts_FillRequestOnce(t *testing.T) {
	f := newFixture(t)
	orgID, employer := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")

	candidates := make([]session.Session, 3)
	for i := range candidates {
		candidates[i] = f.candidate("candidate", "Visby", models.VisibilityPrivate)
		f.match(employer, candidates[i], listing)
	}

	request := f.borrowRequest(employer, orgID, models.ScopeInternal, nil)
	offers, err := f.borrows.FanOut(f.ctx, employer, request.ID)
	require.NoError(t, err)
	require.Len(t, offers, 3)
	assert.Equal(t, 3, f.events(events.BorrowOfferReceivedTopic))

	offerFor := lo.SliceToMap(offers, func(o models.BorrowOffer) (snowflake.ID, snowflake.ID) {
		return o.CandidateID, o.ID
	})

	var wg sync.WaitGroup
	acceptances := make([]*models.BorrowAcceptance, len(candidates))
	failures := make([]error, len(candidates))
	for i, candidate := range candidates {
		wg.Add(1)
		go func(i int, candidate session.Session) {
			defer wg.Done()
			acceptances[i], failures[i] = f.borrows.Accept(f.ctx, candidate, offerFor[candidate.UserID])
		}(i, candidate)
	}
	wg.Wait()

	winners := 0
	var winningOffer snowflake.ID
	for i := range candidates {
		if failures[i] == nil {
			winners++
			winningOffer = acceptances[i].Offer.ID
			assert.NotZero(t, acceptances[i].Booking.ID)
			continue
		}
		assert.True(t, errs.Is(failures[i], errs.Conflict) || errs.Is(failures[i], errs.InvalidStatus), failures[i])
	}
	require.Equal(t, 1, winners)

	stored, err := f.borrows.GetRequest(f.ctx, employer, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowRequestFilled, stored.Status)
	require.NotNil(t, stored.FilledByOfferID)
	assert.Equal(t, winningOffer, *stored.FilledByOfferID)

	all, err := f.borrows.ListOffersForRequest(f.ctx, employer, request.ID)
	require.NoError(t, err)
	accepted := lo.CountBy(all, func(o models.BorrowOffer) bool { return o.Status == models.BorrowOfferAccepted })
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, f.events(events.BorrowRequestFilledTopic))

	var bookings int64
	require.NoError(t, f.db.Model(&models.Booking{}).Where("source = ?", models.BookingFromBorrow).Count(&bookings).Error)
	assert.Equal(t, int64(1), bookings)
}

func Test_Accept_AfterFill_ReturnsConflictWithWinner(t *testing.T) {
	f := newFixture(t)
	orgID, employer := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")
	first := f.candidate("Alva", "Visby", models.VisibilityPublic)
	second := f.candidate("Signe", "Visby", models.VisibilityPublic)
	f.match(employer, first, listing)
	f.match(employer, second, listing)

	request := f.borrowRequest(employer, orgID, models.ScopeInternal, nil)
	offers, err := f.borrows.FanOut(f.ctx, employer, request.ID)
	require.NoError(t, err)
	offerFor := lo.SliceToMap(offers, func(o models.BorrowOffer) (snowflake.ID, snowflake.ID) {
		return o.CandidateID, o.ID
	})

	won, err := f.borrows.Accept(f.ctx, first, offerFor[first.UserID])
	require.NoError(t, err)
	assert.Equal(t, int64(1), won.Closed)
	assert.Equal(t, shiftWindow.Start, won.Booking.StartsAt.UTC())

	_, err = f.borrows.Accept(f.ctx, second, offerFor[second.UserID])
	assert.True(t, errs.Is(err, errs.Conflict))
	assert.Equal(t, offerFor[first.UserID], errs.BlockingID(err))

	_, err = f.borrows.Accept(f.ctx, first, offerFor[second.UserID])
	assert.True(t, errs.Is(err, errs.Forbidden), "offers are accepted only by their candidate")

	_, err = f.borrows.FanOut(f.ctx, employer, request.ID)
	assert.True(t, errs.Is(err, errs.InvalidStatus))
}

func Test_CircleScope_OnlyReachesTrustedPartners(t *testing.T) {
	f := newFixture(t)
	orgA, employerA := f.org("Visby Hamn")
	orgB, employerB := f.org("Slite Bakery")
	orgC, employerC := f.org("Fårö Café")
	f.trust(employerA, orgA, employerB, orgB)

	listingB := f.listing(orgB, models.ListingJob, "baker", "Slite")
	listingC := f.listing(orgC, models.ListingJob, "barista", "Fårö")

	sharedPublic := f.candidate("Alva", "Slite", models.VisibilityPublic)
	sharedCircle := f.candidate("Signe", "Slite", models.VisibilityCircle)
	private := f.candidate("Ebba", "Slite", models.VisibilityPrivate)
	untrusted := f.candidate("Maja", "Visby", models.VisibilityPublic)
	local := f.candidate("Elsa", "Visby", models.VisibilityPublic)
	f.match(employerB, sharedPublic, listingB)
	f.match(employerB, sharedCircle, listingB)
	f.match(employerB, private, listingB)
	f.match(employerC, untrusted, listingC)

	request := f.borrowRequest(employerA, orgA, models.ScopeCircle, nil)

	pool, err := f.borrows.ResolvePool(f.ctx, request.ID)
	require.NoError(t, err)
	ids := candidateIDs(pool)
	assert.ElementsMatch(t, []snowflake.ID{sharedPublic.UserID, sharedCircle.UserID}, ids)
	assert.NotContains(t, ids, local.UserID)

	// the stored scope decides, not what the org could reach through the local pool
	localRequest := f.borrowRequest(employerA, orgA, models.ScopeLocal, nil)
	localPool, err := f.borrows.ResolvePool(f.ctx, localRequest.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{untrusted.UserID, local.UserID}, candidateIDs(localPool))

	pool, err = f.borrows.ResolvePool(f.ctx, request.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{sharedPublic.UserID, sharedCircle.UserID}, candidateIDs(pool))
}

func Test_CircleScope_WithoutPartners_IsEmpty(t *testing.T) {
	f := newFixture(t)
	orgA, employerA := f.org("Visby Hamn")
	listing := f.listing(orgA, models.ListingJob, "bartender", "Visby")
	own := f.candidate("Alva", "Visby", models.VisibilityPublic)
	f.match(employerA, own, listing)

	request := f.borrowRequest(employerA, orgA, models.ScopeCircle, nil)
	pool, err := f.borrows.ResolvePool(f.ctx, request.ID)
	require.NoError(t, err)
	assert.Empty(t, pool)
}

func Test_NamedCircle_NarrowsPool(t *testing.T) {
	f := newFixture(t)
	orgA, employerA := f.org("Visby Hamn")
	orgB, employerB := f.org("Slite Bakery")
	orgC, employerC := f.org("Fårö Café")
	f.trust(employerA, orgA, employerB, orgB)
	f.trust(employerC, orgC, employerA, orgA)

	fromB := f.candidate("Alva", "Slite", models.VisibilityPublic)
	fromC := f.candidate("Signe", "Fårö", models.VisibilityPublic)
	f.match(employerB, fromB, f.listing(orgB, models.ListingJob, "baker", "Slite"))
	f.match(employerC, fromC, f.listing(orgC, models.ListingJob, "barista", "Fårö"))

	circle, err := f.circles.CreateCircle(f.ctx, employerA, orgA, "North coast")
	require.NoError(t, err)
	require.NoError(t, f.circles.AddMember(f.ctx, employerA, circle.ID, orgC))

	request := f.borrowRequest(employerA, orgA, models.ScopeCircle, &circle.ID)
	pool, err := f.borrows.ResolvePool(f.ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{fromC.UserID}, candidateIDs(pool))
}

func Test_Pool_ExcludesUnavailableCandidates(t *testing.T) {
	f := newFixture(t)
	orgID, employer := f.org("Visby Hamn")
	free := f.candidate("Alva", "Visby", models.VisibilityPublic)
	blocked := f.candidate("Signe", "Visby", models.VisibilityPublic)
	booked := f.candidate("Ebba", "Visby", models.VisibilityPublic)

	require.NoError(t, f.candidates.AddAvailabilityBlock(f.ctx, models.AvailabilityBlock{
		Record:      models.Record{ID: f.node.Generate()},
		CandidateID: blocked.UserID,
		StartsAt:    shiftWindow.Start.Add(-time.Hour),
		EndsAt:      shiftWindow.Start.Add(time.Hour),
	}))
	require.NoError(t, f.bookings.Add(f.ctx, models.Booking{
		Record:      models.Record{ID: f.node.Generate()},
		OrgID:       orgID,
		CandidateID: booked.UserID,
		StartsAt:    shiftWindow.End.Add(-time.Hour),
		EndsAt:      shiftWindow.End.Add(time.Hour),
		Source:      models.BookingDirect,
		SourceID:    f.node.Generate(),
	}))
	// touching the window is not an overlap
	require.NoError(t, f.candidates.AddAvailabilityBlock(f.ctx, models.AvailabilityBlock{
		Record:      models.Record{ID: f.node.Generate()},
		CandidateID: free.UserID,
		StartsAt:    shiftWindow.End,
		EndsAt:      shiftWindow.End.Add(24 * time.Hour),
	}))

	request := f.borrowRequest(employer, orgID, models.ScopeLocal, nil)
	pool, err := f.borrows.ResolvePool(f.ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{free.UserID}, candidateIDs(pool))
}

func Test_Accept_WithOverlappingBooking_IsConflict(t *testing.T) {
	f := newFixture(t)
	orgID, employer := f.org("Visby Hamn")
	candidate := f.candidate("Alva", "Visby", models.VisibilityPublic)

	request := f.borrowRequest(employer, orgID, models.ScopeLocal, nil)
	offers, err := f.borrows.FanOut(f.ctx, employer, request.ID)
	require.NoError(t, err)
	require.Len(t, offers, 1)

	// booked elsewhere after the fan-out
	require.NoError(t, f.bookings.Add(f.ctx, models.Booking{
		Record:      models.Record{ID: f.node.Generate()},
		OrgID:       orgID,
		CandidateID: candidate.UserID,
		StartsAt:    shiftWindow.Start,
		EndsAt:      shiftWindow.End,
		Source:      models.BookingDirect,
		SourceID:    f.node.Generate(),
	}))

	_, err = f.borrows.Accept(f.ctx, candidate, offers[0].ID)
	assert.True(t, errs.Is(err, errs.Conflict))

	stored, err := f.borrows.GetRequest(f.ctx, employer, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowRequestOpen, stored.Status)
}

func Test_Accept_WithAvailabilityBlockAddedAfterFanOut_IsConflict(t *testing.T) {
	f := newFixture(t)
	orgID, employer := f.org("Visby Hamn")
	candidate := f.candidate("Alva", "Visby", models.VisibilityPublic)

	request := f.borrowRequest(employer, orgID, models.ScopeLocal, nil)
	offers, err := f.borrows.FanOut(f.ctx, employer, request.ID)
	require.NoError(t, err)
	require.Len(t, offers, 1)

	require.NoError(t, f.candidates.AddAvailabilityBlock(f.ctx, models.AvailabilityBlock{
		Record:      models.Record{ID: f.node.Generate()},
		CandidateID: candidate.UserID,
		StartsAt:    shiftWindow.Start.Add(2 * time.Hour),
		EndsAt:      shiftWindow.End.Add(time.Hour),
	}))

	_, err = f.borrows.Accept(f.ctx, candidate, offers[0].ID)
	assert.True(t, errs.Is(err, errs.Conflict))

	_, err = f.bookings.GetBySource(f.ctx, models.BookingFromBorrow, offers[0].ID)
	assert.True(t, errs.Is(err, errs.NotFound))

	stored, err := f.borrows.GetRequest(f.ctx, employer, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowRequestOpen, stored.Status)
}

func Test_FanOut_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	orgID, employer := f.org("Visby Hamn")
	f.candidate("Alva", "Visby", models.VisibilityPublic)

	request := f.borrowRequest(employer, orgID, models.ScopeLocal, nil)
	first, err := f.borrows.FanOut(f.ctx, employer, request.ID)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	late := f.candidate("Signe", " visby ", models.VisibilityPublic)
	second, err := f.borrows.FanOut(f.ctx, employer, request.ID)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, late.UserID, second[0].CandidateID)

	all, err := f.borrows.ListOffersForRequest(f.ctx, employer, request.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func Test_DeclineAndClose(t *testing.T) {
	f := newFixture(t)
	orgID, employer := f.org("Visby Hamn")
	alva := f.candidate("Alva", "Visby", models.VisibilityPublic)
	signe := f.candidate("Signe", "Visby", models.VisibilityPublic)

	request := f.borrowRequest(employer, orgID, models.ScopeLocal, nil)
	offers, err := f.borrows.FanOut(f.ctx, employer, request.ID)
	require.NoError(t, err)
	offerFor := lo.SliceToMap(offers, func(o models.BorrowOffer) (snowflake.ID, snowflake.ID) {
		return o.CandidateID, o.ID
	})

	declined, err := f.borrows.Decline(f.ctx, alva, offerFor[alva.UserID])
	require.NoError(t, err)
	assert.Equal(t, models.BorrowOfferDeclined, declined.Status)

	_, err = f.borrows.Accept(f.ctx, alva, offerFor[alva.UserID])
	assert.True(t, errs.Is(err, errs.InvalidStatus))

	_, err = f.borrows.Close(f.ctx, signe, request.ID)
	assert.True(t, errs.Is(err, errs.Forbidden))

	closed, err := f.borrows.Close(f.ctx, employer, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowRequestClosed, closed.Status)

	pending, err := f.borrows.ListOffersForCandidate(f.ctx, signe, models.BorrowOfferPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.borrows.Accept(f.ctx, signe, offerFor[signe.UserID])
	assert.True(t, errs.Is(err, errs.InvalidStatus))
	_, err = f.borrows.Close(f.ctx, employer, request.ID)
	assert.True(t, errs.Is(err, errs.InvalidStatus))
}

func Test_ExpireRequests_ClosesEndedWindows(t *testing.T) {
	f := newFixture(t)
	orgID, employer := f.org("Visby Hamn")
	f.candidate("Alva", "Visby", models.VisibilityPublic)

	request := f.borrowRequest(employer, orgID, models.ScopeLocal, nil)
	_, err := f.borrows.FanOut(f.ctx, employer, request.ID)
	require.NoError(t, err)

	expired, err := f.borrows.ExpireRequests(f.ctx, shiftWindow.Start)
	require.NoError(t, err)
	assert.Zero(t, expired)

	expired, err = f.borrows.ExpireRequests(f.ctx, shiftWindow.End.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	offers, err := f.borrows.ListOffersForRequest(f.ctx, employer, request.ID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, models.BorrowOfferClosed, offers[0].Status)
}

func Test_CreateRequest_Validation(t *testing.T) {
	f := newFixture(t)
	orgID, employer := f.org("Visby Hamn")
	otherOrg, otherEmployer := f.org("Slite Bakery")
	circle, err := f.circles.CreateCircle(f.ctx, otherEmployer, otherOrg, "South")
	require.NoError(t, err)

	cases := []struct {
		name  string
		input RequestInput
		kind  errs.Kind
	}{
		{"unknown scope", RequestInput{OrgID: orgID, Role: "cook", Window: shiftWindow, Scope: "global"}, errs.Validation},
		{"missing role", RequestInput{OrgID: orgID, Window: shiftWindow, Scope: models.ScopeInternal}, errs.Validation},
		{"local without location", RequestInput{OrgID: orgID, Role: "cook", Window: shiftWindow, Scope: models.ScopeLocal}, errs.Validation},
		{"reversed window", RequestInput{OrgID: orgID, Role: "cook", Scope: models.ScopeInternal,
			Window: models.TimeWindow{Start: shiftWindow.End, End: shiftWindow.Start}}, errs.Validation},
		{"circle with internal scope", RequestInput{OrgID: orgID, Role: "cook", Window: shiftWindow,
			Scope: models.ScopeInternal, CircleID: &circle.ID}, errs.Validation},
		{"foreign circle", RequestInput{OrgID: orgID, Role: "cook", Window: shiftWindow,
			Scope: models.ScopeCircle, CircleID: &circle.ID}, errs.Forbidden},
		{"not a member", RequestInput{OrgID: otherOrg, Role: "cook", Window: shiftWindow,
			Scope: models.ScopeInternal}, errs.Forbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.borrows.CreateRequest(f.ctx, employer, tc.input)
			assert.True(t, errs.Is(err, tc.kind), "got %v", err)
		})
	}
}
