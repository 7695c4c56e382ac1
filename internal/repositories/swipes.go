package repositories

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Swipes struct {
	db *gorm.DB
}

func NewSwipesRepository(db *gorm.DB) *Swipes {
	return &Swipes{db: db}
}

// Upsert records the swipe, replacing the direction of an earlier swipe by the same actor on the same target.
func (repo *Swipes) Upsert(ctx context.Context, swipe models.Swipe) (*models.Swipe, error) {
	err := repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "side"}, {Name: "actor_id"}, {Name: "listing_id"}, {Name: "candidate_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"direction", "demo_session", "updated_at"}),
	}).Create(&swipe).Error
	if err != nil {
		return nil, translate(err, "swipe")
	}

	var stored models.Swipe
	err = repo.db.WithContext(ctx).First(&stored, "side = ? AND actor_id = ? AND listing_id = ? AND candidate_id = ?",
		swipe.Side, swipe.ActorID, swipe.ListingID, swipe.CandidateID).Error
	if err != nil {
		return nil, translate(err, "swipe")
	}
	return &stored, nil
}

// HasYes reports whether anyone on the given side said yes to the (listing, candidate) pair.
func (repo *Swipes) HasYes(ctx context.Context, side models.Side, listingID, candidateID snowflake.ID) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&models.Swipe{}).
		Where("side = ? AND listing_id = ? AND candidate_id = ? AND direction = ?", side, listingID, candidateID, models.Yes).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "swipe")
	}
	return count > 0, nil
}
