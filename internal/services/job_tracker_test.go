package services

import (
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/maxaizer/shiftmatch/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
)

func Test_SubmitApply_RemovesSavedRecord(t *testing.T) {
	f := newFixture(t)
	orgID, _ := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")
	candidate := f.candidate("Alva", "Visby", models.VisibilityPublic)

	state, err := f.tracker.Save(f.ctx, candidate, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobSaved, state.Status)

	state, err = f.tracker.StartApply(f.ctx, candidate, listing.ID, "available all summer")
	require.NoError(t, err)
	assert.Equal(t, models.JobApplying, state.Status)

	state, err = f.tracker.SubmitApply(f.ctx, candidate, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobApplied, state.Status)
	assert.NotZero(t, state.ApplicationID)

	var saved int64
	require.NoError(t, f.db.Model(&models.SavedListing{}).
		Where("candidate_id = ? AND listing_id = ?", candidate.UserID, listing.ID).Count(&saved).Error)
	assert.Zero(t, saved)

	var application models.Application
	require.NoError(t, f.db.First(&application, "candidate_id = ?", candidate.UserID).Error)
	assert.Equal(t, "available all summer", application.Note)
	assert.NotNil(t, application.SubmittedAt)

	state, err = f.tracker.State(f.ctx, candidate, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobApplied, state.Status)
}

func Test_ConcurrentSaves_DoNotOutliveSubmit(t *testing.T) {
	f := newFixture(t)
	orgID, _ := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")
	candidate := f.candidate("Alva", "Visby", models.VisibilityPublic)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.tracker.Save(f.ctx, candidate, listing.ID)
		}()
	}

	_, err := f.tracker.StartApply(f.ctx, candidate, listing.ID, "")
	require.NoError(t, err)
	state, err := f.tracker.SubmitApply(f.ctx, candidate, listing.ID)
	require.NoError(t, err)
	wg.Wait()

	assert.Equal(t, models.JobApplied, state.Status)

	var saved int64
	require.NoError(t, f.db.Model(&models.SavedListing{}).
		Where("candidate_id = ? AND listing_id = ?", candidate.UserID, listing.ID).Count(&saved).Error)
	assert.Zero(t, saved)

	state, err = f.tracker.State(f.ctx, candidate, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobApplied, state.Status)
}

func Test_Dismiss_RefusesSavedAndApplications(t *testing.T) {
	f := newFixture(t)
	orgID, _ := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")
	candidate := f.candidate("Alva", "Visby", models.VisibilityPublic)

	_, err := f.tracker.Save(f.ctx, candidate, listing.ID)
	require.NoError(t, err)

	_, err = f.tracker.Dismiss(f.ctx, candidate, listing.ID)
	assert.True(t, errs.Is(err, errs.InvalidStatus))

	state, err := f.tracker.Unsave(f.ctx, candidate, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobNone, state.Status)

	state, err = f.tracker.Dismiss(f.ctx, candidate, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDismissed, state.Status)

	state, err = f.tracker.Dismiss(f.ctx, candidate, listing.ID)
	require.NoError(t, err, "dismissing twice is idempotent")
	assert.Equal(t, models.JobDismissed, state.Status)

	_, err = f.tracker.StartApply(f.ctx, candidate, listing.ID, "")
	require.NoError(t, err)
	_, err = f.tracker.Dismiss(f.ctx, candidate, listing.ID)
	assert.True(t, errs.Is(err, errs.InvalidStatus))
}

func Test_Save_ClearsDismissal(t *testing.T) {
	f := newFixture(t)
	orgID, _ := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")
	candidate := f.candidate("Alva", "Visby", models.VisibilityPublic)

	_, err := f.tracker.Dismiss(f.ctx, candidate, listing.ID)
	require.NoError(t, err)

	state, err := f.tracker.Save(f.ctx, candidate, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobSaved, state.Status)

	state, err = f.tracker.Unsave(f.ctx, candidate, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobNone, state.Status, "dismissal must not resurface after unsave")
}

func Test_SaveInstead_ReplacesDraft(t *testing.T) {
	f := newFixture(t)
	orgID, _ := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")
	candidate := f.candidate("Alva", "Visby", models.VisibilityPublic)

	_, err := f.tracker.SaveInstead(f.ctx, candidate, listing.ID)
	assert.True(t, errs.Is(err, errs.InvalidStatus))

	_, err = f.tracker.StartApply(f.ctx, candidate, listing.ID, "draft")
	require.NoError(t, err)

	state, err := f.tracker.SaveInstead(f.ctx, candidate, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobSaved, state.Status)
	assert.Zero(t, state.ApplicationID)
}

func Test_SubmitApply_Twice_IsInvalidStatus(t *testing.T) {
	f := newFixture(t)
	orgID, _ := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")
	candidate := f.candidate("Alva", "Visby", models.VisibilityPublic)

	_, err := f.tracker.SubmitApply(f.ctx, candidate, listing.ID)
	assert.True(t, errs.Is(err, errs.InvalidStatus))

	_, err = f.tracker.StartApply(f.ctx, candidate, listing.ID, "")
	require.NoError(t, err)
	_, err = f.tracker.SubmitApply(f.ctx, candidate, listing.ID)
	require.NoError(t, err)

	_, err = f.tracker.SubmitApply(f.ctx, candidate, listing.ID)
	assert.True(t, errs.Is(err, errs.InvalidStatus))
	_, err = f.tracker.StartApply(f.ctx, candidate, listing.ID, "")
	assert.True(t, errs.Is(err, errs.InvalidStatus))
	_, err = f.tracker.Save(f.ctx, candidate, listing.ID)
	assert.True(t, errs.Is(err, errs.InvalidStatus))
}

func Test_StartApply_OnClosedListing_IsValidationError(t *testing.T) {
	f := newFixture(t)
	orgID, _ := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")
	require.NoError(t, f.listings.UpdateStatus(f.ctx, listing.ID, models.ListingClosed))
	candidate := f.candidate("Alva", "Visby", models.VisibilityPublic)

	_, err := f.tracker.StartApply(f.ctx, candidate, listing.ID, "")
	assert.True(t, errs.Is(err, errs.Validation))
}

func Test_JobTracker_Unauthenticated_WritesNothing(t *testing.T) {
	f := newFixture(t)
	orgID, _ := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")

	_, err := f.tracker.Save(f.ctx, session.Session{}, listing.ID)
	assert.True(t, errs.Is(err, errs.Forbidden))
	_, err = f.tracker.StartApply(f.ctx, session.Session{}, listing.ID, "")
	assert.True(t, errs.Is(err, errs.Forbidden))

	var saved int64
	require.NoError(t, f.db.Model(&models.SavedListing{}).Count(&saved).Error)
	assert.Zero(t, saved)
}

func Test_States_ResolvesBatch(t *testing.T) {
	f := newFixture(t)
	orgID, _ := f.org("Visby Hamn")
	first := f.listing(orgID, models.ListingJob, "bartender", "Visby")
	second := f.listing(orgID, models.ListingJob, "chef", "Visby")
	third := f.listing(orgID, models.ListingJob, "cleaner", "Visby")
	candidate := f.candidate("Alva", "Visby", models.VisibilityPublic)

	_, err := f.tracker.Save(f.ctx, candidate, first.ID)
	require.NoError(t, err)
	_, err = f.tracker.StartApply(f.ctx, candidate, second.ID, "")
	require.NoError(t, err)

	states, err := f.tracker.States(f.ctx, candidate, []snowflake.ID{first.ID, second.ID, third.ID})
	require.NoError(t, err)
	assert.Equal(t, models.JobSaved, states[first.ID].Status)
	assert.Equal(t, models.JobApplying, states[second.ID].Status)
	assert.Equal(t, models.JobNone, states[third.ID].Status)
}

func Test_DemoSession_TagsWrites(t *testing.T) {
	f := newFixture(t)
	orgID, _ := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")
	live := f.candidate("Alva", "Visby", models.VisibilityPublic)
	demo := session.NewDemo(live.UserID)

	_, err := f.tracker.Save(f.ctx, demo, listing.ID)
	require.NoError(t, err)

	var saved models.SavedListing
	require.NoError(t, f.db.First(&saved, "candidate_id = ?", live.UserID).Error)
	assert.Equal(t, demo.DemoSessionID, saved.DemoSession)
}
