package repositories

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"time"
)

const openDeadline = "expires_at IS NULL OR expires_at > ?"

type Offers struct {
	db *gorm.DB
}

func NewOffersRepository(db *gorm.DB) *Offers {
	return &Offers{db: db}
}

func (repo *Offers) Add(ctx context.Context, offer models.Offer) error {
	return translate(repo.db.WithContext(ctx).Create(&offer).Error, "offer")
}

func (repo *Offers) GetByID(ctx context.Context, id snowflake.ID) (*models.Offer, error) {
	var offer models.Offer
	if err := repo.db.WithContext(ctx).First(&offer, "id = ?", id).Error; err != nil {
		return nil, translate(err, "offer")
	}
	return &offer, nil
}

// Send moves a draft to sent in one statement, only while no other offer for the same
// (org, candidate, subject) is sent or accepted. The partial unique index backs the same rule.
func (repo *Offers) Send(ctx context.Context, id snowflake.ID, now, expiresAt time.Time) (bool, error) {
	result := repo.db.WithContext(ctx).Exec(
		`UPDATE offers
		 SET status = ?, sent_at = ?, expires_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?
		   AND NOT EXISTS (
		     SELECT 1 FROM offers AS active
		     WHERE active.org_id = offers.org_id
		       AND active.candidate_id = offers.candidate_id
		       AND active.subject_key = offers.subject_key
		       AND active.id <> offers.id
		       AND active.status IN ?
		   )`,
		models.OfferSent, now, expiresAt, now,
		id, models.OfferDraft,
		models.ActiveOfferStatuses,
	)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, nil
		}
		return false, translate(result.Error, "offer")
	}
	return result.RowsAffected == 1, nil
}

// FindActive returns the sent or accepted offer for the same subject as the given one, excluding itself.
func (repo *Offers) FindActive(ctx context.Context, offer models.Offer) (*models.Offer, error) {
	var active models.Offer
	found, err := first(repo.db.WithContext(ctx), &active,
		"org_id = ? AND candidate_id = ? AND subject_key = ? AND id <> ? AND status IN ?",
		offer.OrgID, offer.CandidateID, offer.SubjectKey, offer.ID, models.ActiveOfferStatuses)
	if err != nil || !found {
		return nil, translate(err, "offer")
	}
	return &active, nil
}

// Transition is a compare-and-swap on the offer status.
func (repo *Offers) Transition(ctx context.Context, id snowflake.ID, from []models.OfferStatus,
	to models.OfferStatus, now time.Time) (bool, error) {

	result := repo.db.WithContext(ctx).Model(&models.Offer{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{"status": to, "responded_at": now, "updated_at": now})
	if result.Error != nil {
		return false, translate(result.Error, "offer")
	}
	return result.RowsAffected == 1, nil
}

// Decline marks a sent offer declined by its candidate while its deadline has not passed.
func (repo *Offers) Decline(ctx context.Context, id, candidateID snowflake.ID, now time.Time) (bool, error) {
	result := repo.db.WithContext(ctx).Model(&models.Offer{}).
		Where("id = ? AND candidate_id = ? AND status = ?", id, candidateID, models.OfferSent).
		Where(openDeadline, now).
		Updates(map[string]any{"status": models.OfferDeclined, "responded_at": now, "updated_at": now})
	if result.Error != nil {
		return false, translate(result.Error, "offer")
	}
	return result.RowsAffected == 1, nil
}

// Accept marks a sent offer accepted, makes sure a match exists for its listing and books the candidate,
// all in one transaction. ok is false when the offer was no longer sent or its deadline passed.
func (repo *Offers) Accept(ctx context.Context, offer models.Offer, match models.Match, booking models.Booking,
	now time.Time) (accepted *models.Offer, ok bool, err error) {

	err = repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Offer{}).
			Where("id = ? AND candidate_id = ? AND status = ?", offer.ID, offer.CandidateID, models.OfferSent).
			Where(openDeadline, now).
			Updates(map[string]any{"status": models.OfferAccepted, "responded_at": now, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return errNotApplied
		}

		storedMatch, _, err := createMatchIfAbsent(tx, match)
		if err != nil {
			return err
		}
		if offer.MatchID == nil {
			if err = tx.Model(&models.Offer{}).Where("id = ?", offer.ID).
				Update("match_id", storedMatch.ID).Error; err != nil {
				return err
			}
		}

		if err = tx.Create(&booking).Error; err != nil {
			if isUniqueViolation(err) {
				return errs.New(errs.Conflict, "a booking already exists for this offer")
			}
			return err
		}

		accepted = &models.Offer{}
		return tx.First(accepted, "id = ?", offer.ID).Error
	})

	if errors.Is(err, errNotApplied) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translate(err, "offer")
	}
	return accepted, true, nil
}

// ExpireSent moves sent offers whose deadline passed to expired.
func (repo *Offers) ExpireSent(ctx context.Context, now time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).Model(&models.Offer{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.OfferSent, now).
		Updates(map[string]any{"status": models.OfferExpired, "updated_at": now})
	return result.RowsAffected, translate(result.Error, "offer")
}

func (repo *Offers) ListByCandidate(ctx context.Context, candidateID snowflake.ID, statuses []models.OfferStatus) ([]models.Offer, error) {
	query := repo.db.WithContext(ctx).Where("candidate_id = ?", candidateID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var offers []models.Offer
	err := query.Order("created_at DESC").Find(&offers).Error
	return offers, translate(err, "offer")
}

func (repo *Offers) ListByOrg(ctx context.Context, orgID snowflake.ID, statuses []models.OfferStatus) ([]models.Offer, error) {
	query := repo.db.WithContext(ctx).Where("org_id = ?", orgID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var offers []models.Offer
	err := query.Order("created_at DESC").Find(&offers).Error
	return offers, translate(err, "offer")
}
