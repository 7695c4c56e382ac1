package repositories

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"gorm.io/gorm"
)

type Bookings struct {
	db *gorm.DB
}

func NewBookingsRepository(db *gorm.DB) *Bookings {
	return &Bookings{db: db}
}

func (repo *Bookings) Add(ctx context.Context, booking models.Booking) error {
	return translate(repo.db.WithContext(ctx).Create(&booking).Error, "booking")
}

func (repo *Bookings) GetBySource(ctx context.Context, source models.BookingSource, sourceID snowflake.ID) (*models.Booking, error) {
	var booking models.Booking
	err := repo.db.WithContext(ctx).First(&booking, "source = ? AND source_id = ?", source, sourceID).Error
	if err != nil {
		return nil, translate(err, "booking")
	}
	return &booking, nil
}

func (repo *Bookings) ListByCandidate(ctx context.Context, candidateID snowflake.ID) ([]models.Booking, error) {
	var bookings []models.Booking
	err := repo.db.WithContext(ctx).Order("starts_at").Find(&bookings, "candidate_id = ?", candidateID).Error
	return bookings, translate(err, "booking")
}

// ListByOrg returns the org's bookings overlapping the window, as shown by the scheduler.
func (repo *Bookings) ListByOrg(ctx context.Context, orgID snowflake.ID, window models.TimeWindow) ([]models.Booking, error) {
	window = window.UTC()
	var bookings []models.Booking
	err := repo.db.WithContext(ctx).Order("starts_at").
		Find(&bookings, "org_id = ? AND starts_at < ? AND ends_at > ?", orgID, window.End, window.Start).Error
	return bookings, translate(err, "booking")
}
