package services

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/maxaizer/shiftmatch/internal/repositories"
	"github.com/maxaizer/shiftmatch/internal/session"
	log "github.com/sirupsen/logrus"
)

type jobStateRepository interface {
	Get(ctx context.Context, candidateID, listingID snowflake.ID) (models.JobRecords, error)
	GetMany(ctx context.Context, candidateID snowflake.ID, listingIDs []snowflake.ID) (map[snowflake.ID]models.JobRecords, error)
	Mutate(ctx context.Context, candidateID, listingID snowflake.ID,
		fn func(w *repositories.JobStateWriter, current models.JobRecords) error) (models.JobRecords, error)
}

type listingReader interface {
	GetByID(ctx context.Context, id snowflake.ID) (*models.Listing, error)
}

// JobTracker owns the candidate's relationship with each listing: saved, dismissed, applying or applied.
type JobTracker struct {
	node     *snowflake.Node
	states   jobStateRepository
	listings listingReader
}

func NewJobTracker(node *snowflake.Node, states jobStateRepository, listings listingReader) *JobTracker {
	return &JobTracker{node: node, states: states, listings: listings}
}

func (t *JobTracker) State(ctx context.Context, sess session.Session, listingID snowflake.ID) (models.CandidateJobState, error) {
	candidateID, err := sess.Actor()
	if err != nil {
		return models.CandidateJobState{}, err
	}

	records, err := t.states.Get(ctx, candidateID, listingID)
	if err != nil {
		return models.CandidateJobState{}, failure("failed to load job state", err)
	}
	return models.ResolveJobState(candidateID, listingID, records), nil
}

func (t *JobTracker) States(ctx context.Context, sess session.Session,
	listingIDs []snowflake.ID) (map[snowflake.ID]models.CandidateJobState, error) {

	candidateID, err := sess.Actor()
	if err != nil {
		return nil, err
	}

	records, err := t.states.GetMany(ctx, candidateID, listingIDs)
	if err != nil {
		return nil, failure("failed to load job states", err)
	}

	states := make(map[snowflake.ID]models.CandidateJobState, len(listingIDs))
	for _, listingID := range listingIDs {
		states[listingID] = models.ResolveJobState(candidateID, listingID, records[listingID])
	}
	return states, nil
}

// Save moves none or dismissed to saved. Saving a saved listing is a no-op.
func (t *JobTracker) Save(ctx context.Context, sess session.Session, listingID snowflake.ID) (models.CandidateJobState, error) {
	return t.transition(ctx, sess, listingID, "save", func(w *repositories.JobStateWriter, state models.CandidateJobState, current models.JobRecords) error {
		switch state.Status {
		case models.JobApplying, models.JobApplied:
			return errs.Newf(errs.InvalidStatus, "can't save a listing you are %s to", state.Status)
		}
		return t.save(w, sess)
	})
}

// Dismiss moves none to dismissed. Saved listings must be unsaved first.
func (t *JobTracker) Dismiss(ctx context.Context, sess session.Session, listingID snowflake.ID) (models.CandidateJobState, error) {
	return t.transition(ctx, sess, listingID, "dismiss", func(w *repositories.JobStateWriter, state models.CandidateJobState, current models.JobRecords) error {
		switch state.Status {
		case models.JobNone, models.JobDismissed:
			return w.UpsertDismissed(models.DismissedListing{Record: t.record(sess)})
		case models.JobSaved:
			return errs.New(errs.InvalidStatus, "unsave the listing before dismissing it")
		default:
			return errs.Newf(errs.InvalidStatus, "can't dismiss a listing you are %s to", state.Status)
		}
	})
}

func (t *JobTracker) Unsave(ctx context.Context, sess session.Session, listingID snowflake.ID) (models.CandidateJobState, error) {
	return t.transition(ctx, sess, listingID, "unsave", func(w *repositories.JobStateWriter, state models.CandidateJobState, current models.JobRecords) error {
		if state.Status != models.JobSaved {
			return errs.Newf(errs.InvalidStatus, "listing is %s, not saved", state.Status)
		}
		return w.DeleteSaved()
	})
}

// StartApply creates or updates the draft application. The listing must still accept applications.
func (t *JobTracker) StartApply(ctx context.Context, sess session.Session, listingID snowflake.ID,
	note string) (models.CandidateJobState, error) {

	if _, err := sess.Actor(); err != nil {
		return models.CandidateJobState{}, err
	}

	listing, err := t.listings.GetByID(ctx, listingID)
	if err != nil {
		return models.CandidateJobState{}, failure("failed to load listing", err)
	}
	if !listing.Open() {
		return models.CandidateJobState{}, errs.Newf(errs.Validation, "listing is %s and does not accept applications", listing.Status)
	}

	return t.transition(ctx, sess, listingID, "start_apply", func(w *repositories.JobStateWriter, state models.CandidateJobState, current models.JobRecords) error {
		if state.Status == models.JobApplied {
			return errs.New(errs.InvalidStatus, "application is already submitted")
		}
		return w.UpsertApplication(models.Application{
			Record: t.record(sess),
			Status: models.ApplicationDraft,
			Note:   note,
		})
	})
}

// SubmitApply submits the draft and removes any saved record in the same transaction.
func (t *JobTracker) SubmitApply(ctx context.Context, sess session.Session, listingID snowflake.ID) (models.CandidateJobState, error) {
	return t.transition(ctx, sess, listingID, "submit_apply", func(w *repositories.JobStateWriter, state models.CandidateJobState, current models.JobRecords) error {
		switch state.Status {
		case models.JobApplying:
		case models.JobApplied:
			return errs.New(errs.InvalidStatus, "application is already submitted")
		default:
			return errs.New(errs.InvalidStatus, "start an application before submitting it")
		}

		now := utcNow()
		if err := w.UpsertApplication(models.Application{
			Record:      t.record(sess),
			Status:      models.ApplicationSubmitted,
			Note:        current.Application.Note,
			SubmittedAt: &now,
		}); err != nil {
			return err
		}
		return w.DeleteSaved()
	})
}

// SaveInstead drops the draft application and saves the listing.
func (t *JobTracker) SaveInstead(ctx context.Context, sess session.Session, listingID snowflake.ID) (models.CandidateJobState, error) {
	return t.transition(ctx, sess, listingID, "save_instead", func(w *repositories.JobStateWriter, state models.CandidateJobState, current models.JobRecords) error {
		if state.Status != models.JobApplying {
			return errs.Newf(errs.InvalidStatus, "listing is %s, there is no draft to replace", state.Status)
		}
		if err := w.DeleteApplication(); err != nil {
			return err
		}
		return t.save(w, sess)
	})
}

func (t *JobTracker) save(w *repositories.JobStateWriter, sess session.Session) error {
	if err := w.DeleteDismissed(); err != nil {
		return err
	}
	return w.UpsertSaved(models.SavedListing{Record: t.record(sess)})
}

func (t *JobTracker) transition(ctx context.Context, sess session.Session, listingID snowflake.ID, action string,
	apply func(w *repositories.JobStateWriter, state models.CandidateJobState, current models.JobRecords) error) (models.CandidateJobState, error) {

	candidateID, err := sess.Actor()
	if err != nil {
		return models.CandidateJobState{}, err
	}

	after, err := t.states.Mutate(ctx, candidateID, listingID,
		func(w *repositories.JobStateWriter, current models.JobRecords) error {
			return apply(w, models.ResolveJobState(candidateID, listingID, current), current)
		})
	if err != nil {
		return models.CandidateJobState{}, failure("failed to "+action, err)
	}

	state := models.ResolveJobState(candidateID, listingID, after)
	log.Debugf("candidate %v %s listing %v: now %s", candidateID, action, listingID, state.Status)
	return state, nil
}

func (t *JobTracker) record(sess session.Session) models.Record {
	return models.Record{ID: t.node.Generate(), DemoSession: sess.Tag()}
}
