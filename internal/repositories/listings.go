package repositories

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"gorm.io/gorm"
	"time"
)

type Listings struct {
	db *gorm.DB
}

func NewListingsRepository(db *gorm.DB) *Listings {
	return &Listings{db: db}
}

func (repo *Listings) Add(ctx context.Context, listing models.Listing) error {
	listing.NormalizedLocation = models.NormalizeLocation(listing.Location)
	return translate(repo.db.WithContext(ctx).Create(&listing).Error, "listing")
}

func (repo *Listings) GetByID(ctx context.Context, id snowflake.ID) (*models.Listing, error) {
	var listing models.Listing
	if err := repo.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, translate(err, "listing")
	}
	return &listing, nil
}

func (repo *Listings) ListByIDs(ctx context.Context, ids []snowflake.ID) ([]models.Listing, error) {
	var listings []models.Listing
	if len(ids) == 0 {
		return listings, nil
	}
	err := repo.db.WithContext(ctx).Find(&listings, "id IN ?", ids).Error
	return listings, translate(err, "listing")
}

func (repo *Listings) UpdateStatus(ctx context.Context, id snowflake.ID, status models.ListingStatus) error {
	return translate(repo.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error, "listing")
}

// ListUnswiped returns open listings the candidate has not swiped on yet, oldest first.
func (repo *Listings) ListUnswiped(ctx context.Context, candidateID snowflake.ID, filter models.ListingFilter) ([]models.Listing, error) {

	swiped := repo.db.Model(&models.Swipe{}).Select("listing_id").
		Where("side = ? AND actor_id = ?", models.SideTalent, candidateID)

	query := repo.db.WithContext(ctx).
		Where("status IN ?", []models.ListingStatus{models.ListingPublished, models.ListingMatching}).
		Where("id NOT IN (?)", swiped)

	if filter.Location != "" {
		query = query.Where("normalized_location = ?", models.NormalizeLocation(filter.Location))
	}
	if filter.Role != "" {
		query = query.Where("LOWER(role) = LOWER(?)", filter.Role)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if !filter.From.IsZero() {
		query = query.Where("end_date >= ?", filter.From.UTC())
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var listings []models.Listing
	if err := query.Order("created_at, id").Find(&listings).Error; err != nil {
		return nil, translate(err, "listing")
	}
	return listings, nil
}
