package repositories

import (
	"context"
	"fmt"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobStates stores the three records a CandidateJobState is derived from.
type JobStates struct {
	db *gorm.DB
}

func NewJobStatesRepository(db *gorm.DB) *JobStates {
	return &JobStates{db: db}
}

func (repo *JobStates) Get(ctx context.Context, candidateID, listingID snowflake.ID) (models.JobRecords, error) {
	return loadJobRecords(repo.db.WithContext(ctx), candidateID, listingID)
}

// GetMany loads records for several listings with three batched queries.
func (repo *JobStates) GetMany(ctx context.Context, candidateID snowflake.ID,
	listingIDs []snowflake.ID) (map[snowflake.ID]models.JobRecords, error) {

	result := make(map[snowflake.ID]models.JobRecords, len(listingIDs))
	if len(listingIDs) == 0 {
		return result, nil
	}
	db := repo.db.WithContext(ctx)

	var applications []models.Application
	if err := db.Find(&applications, "candidate_id = ? AND listing_id IN ?", candidateID, listingIDs).Error; err != nil {
		return nil, translate(err, "application")
	}
	var saved []models.SavedListing
	if err := db.Find(&saved, "candidate_id = ? AND listing_id IN ?", candidateID, listingIDs).Error; err != nil {
		return nil, translate(err, "saved listing")
	}
	var dismissed []models.DismissedListing
	if err := db.Find(&dismissed, "candidate_id = ? AND listing_id IN ?", candidateID, listingIDs).Error; err != nil {
		return nil, translate(err, "dismissed listing")
	}

	for i := range applications {
		records := result[applications[i].ListingID]
		records.Application = &applications[i]
		result[applications[i].ListingID] = records
	}
	for i := range saved {
		records := result[saved[i].ListingID]
		records.Saved = &saved[i]
		result[saved[i].ListingID] = records
	}
	for i := range dismissed {
		records := result[dismissed[i].ListingID]
		records.Dismissed = &dismissed[i]
		result[dismissed[i].ListingID] = records
	}
	return result, nil
}

// Mutate runs fn inside one transaction with the pair's current records, so every transition
// decides on and writes a consistent snapshot. Transitions on the same pair are serialized.
func (repo *JobStates) Mutate(ctx context.Context, candidateID, listingID snowflake.ID,
	fn func(w *JobStateWriter, current models.JobRecords) error) (models.JobRecords, error) {

	var after models.JobRecords
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPair(tx, candidateID, listingID); err != nil {
			return err
		}
		current, err := loadJobRecords(tx, candidateID, listingID)
		if err != nil {
			return err
		}
		w := &JobStateWriter{tx: tx, candidateID: candidateID, listingID: listingID}
		if err = fn(w, current); err != nil {
			return err
		}
		after, err = loadJobRecords(tx, candidateID, listingID)
		return err
	})
	if err != nil {
		return models.JobRecords{}, translate(err, "job state")
	}
	return after, nil
}

// lockPair takes a transaction-scoped advisory lock on the pair. The records may not exist yet, so
// row locks can not cover a first Save racing a StartApply. sqlite runs on a single connection and
// is already serialized.
func lockPair(tx *gorm.DB, candidateID, listingID snowflake.ID) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", jobStateLockKey(candidateID, listingID)).Error
}

func jobStateLockKey(candidateID, listingID snowflake.ID) string {
	return fmt.Sprintf("job_state:%d:%d", candidateID, listingID)
}

func loadJobRecords(db *gorm.DB, candidateID, listingID snowflake.ID) (models.JobRecords, error) {
	var records models.JobRecords
	where := "candidate_id = ? AND listing_id = ?"

	var application models.Application
	if found, err := first(db, &application, where, candidateID, listingID); err != nil {
		return records, err
	} else if found {
		records.Application = &application
	}

	var saved models.SavedListing
	if found, err := first(db, &saved, where, candidateID, listingID); err != nil {
		return records, err
	} else if found {
		records.Saved = &saved
	}

	var dismissed models.DismissedListing
	if found, err := first(db, &dismissed, where, candidateID, listingID); err != nil {
		return records, err
	} else if found {
		records.Dismissed = &dismissed
	}

	return records, nil
}

// JobStateWriter exposes the writes allowed on one (candidate, listing) pair inside Mutate.
type JobStateWriter struct {
	tx          *gorm.DB
	candidateID snowflake.ID
	listingID   snowflake.ID
}

func (w *JobStateWriter) pair() (string, snowflake.ID, snowflake.ID) {
	return "candidate_id = ? AND listing_id = ?", w.candidateID, w.listingID
}

func (w *JobStateWriter) UpsertSaved(saved models.SavedListing) error {
	saved.CandidateID, saved.ListingID = w.candidateID, w.listingID
	return w.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "candidate_id"}, {Name: "listing_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"demo_session", "updated_at"}),
	}).Create(&saved).Error
}

func (w *JobStateWriter) DeleteSaved() error {
	query, candidateID, listingID := w.pair()
	return w.tx.Delete(&models.SavedListing{}, query, candidateID, listingID).Error
}

func (w *JobStateWriter) UpsertDismissed(dismissed models.DismissedListing) error {
	dismissed.CandidateID, dismissed.ListingID = w.candidateID, w.listingID
	return w.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "candidate_id"}, {Name: "listing_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"demo_session", "updated_at"}),
	}).Create(&dismissed).Error
}

func (w *JobStateWriter) DeleteDismissed() error {
	query, candidateID, listingID := w.pair()
	return w.tx.Delete(&models.DismissedListing{}, query, candidateID, listingID).Error
}

// UpsertApplication is keyed by (candidate, listing); an existing row keeps its id.
func (w *JobStateWriter) UpsertApplication(application models.Application) error {
	application.CandidateID, application.ListingID = w.candidateID, w.listingID
	return w.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "candidate_id"}, {Name: "listing_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "note", "submitted_at", "demo_session", "updated_at"}),
	}).Create(&application).Error
}

func (w *JobStateWriter) DeleteApplication() error {
	query, candidateID, listingID := w.pair()
	return w.tx.Delete(&models.Application{}, query, candidateID, listingID).Error
}
