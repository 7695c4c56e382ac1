package repositories

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Candidates struct {
	db *gorm.DB
}

func NewCandidatesRepository(db *gorm.DB) *Candidates {
	return &Candidates{db: db}
}

// Save creates or replaces the profile of a candidate.
func (repo *Candidates) Save(ctx context.Context, candidate models.Candidate) error {
	candidate.NormalizedLocation = models.NormalizeLocation(candidate.Location)
	return translate(repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "location", "normalized_location", "visibility", "updated_at"}),
	}).Create(&candidate).Error, "candidate")
}

func (repo *Candidates) GetByID(ctx context.Context, id snowflake.ID) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := repo.db.WithContext(ctx).First(&candidate, "id = ?", id).Error; err != nil {
		return nil, translate(err, "candidate")
	}
	return &candidate, nil
}

func (repo *Candidates) ListByIDs(ctx context.Context, ids []snowflake.ID) ([]models.Candidate, error) {
	var candidates []models.Candidate
	if len(ids) == 0 {
		return candidates, nil
	}
	err := repo.db.WithContext(ctx).Find(&candidates, "id IN ?", ids).Error
	return candidates, translate(err, "candidate")
}

func (repo *Candidates) AddAvailabilityBlock(ctx context.Context, block models.AvailabilityBlock) error {
	return translate(repo.db.WithContext(ctx).Create(&block).Error, "availability block")
}

// ListUnswipedForListing returns candidates an employer user has not judged yet for the listing:
// public candidates in the listing's location and anyone who already said yes to it.
func (repo *Candidates) ListUnswipedForListing(ctx context.Context, actorID snowflake.ID, listing models.Listing,
	limit int) ([]models.Candidate, error) {

	swiped := repo.db.Model(&models.Swipe{}).Select("candidate_id").
		Where("side = ? AND actor_id = ? AND listing_id = ?", models.SideEmployer, actorID, listing.ID)
	interested := repo.db.Model(&models.Swipe{}).Select("candidate_id").
		Where("side = ? AND listing_id = ? AND direction = ?", models.SideTalent, listing.ID, models.Yes)

	query := repo.db.WithContext(ctx).
		Where("id NOT IN (?)", swiped).
		Where(repo.db.Where("visibility = ? AND normalized_location = ?", models.VisibilityPublic, listing.NormalizedLocation).
			Or("id IN (?)", interested))

	if limit > 0 {
		query = query.Limit(limit)
	}

	var candidates []models.Candidate
	if err := query.Order("created_at, id").Find(&candidates).Error; err != nil {
		return nil, translate(err, "candidate")
	}
	return candidates, nil
}

// PoolQuery narrows the candidates eligible for a borrow request.
type PoolQuery struct {
	// MatchedWithOrgs keeps candidates holding a match with any of these orgs. Nil disables the filter.
	MatchedWithOrgs []snowflake.ID
	Visibilities    []models.Visibility
	Location        string
	Window          models.TimeWindow
}

// ListAvailable resolves a candidate pool, excluding anyone booked or blocked inside the window.
func (repo *Candidates) ListAvailable(ctx context.Context, pool PoolQuery) ([]models.Candidate, error) {

	if pool.MatchedWithOrgs != nil && len(pool.MatchedWithOrgs) == 0 {
		return []models.Candidate{}, nil
	}

	window := pool.Window.UTC()
	booked := repo.db.Model(&models.Booking{}).Select("candidate_id").
		Where("starts_at < ? AND ends_at > ?", window.End, window.Start)
	blocked := repo.db.Model(&models.AvailabilityBlock{}).Select("candidate_id").
		Where("starts_at < ? AND ends_at > ?", window.End, window.Start)

	query := repo.db.WithContext(ctx).
		Where("id NOT IN (?)", booked).
		Where("id NOT IN (?)", blocked)

	if pool.MatchedWithOrgs != nil {
		matched := repo.db.Model(&models.Match{}).Select("candidate_id").Where("org_id IN ?", pool.MatchedWithOrgs)
		query = query.Where("id IN (?)", matched)
	}
	if len(pool.Visibilities) > 0 {
		query = query.Where("visibility IN ?", pool.Visibilities)
	}
	if pool.Location != "" {
		query = query.Where("normalized_location = ?", models.NormalizeLocation(pool.Location))
	}

	var candidates []models.Candidate
	if err := query.Order("id").Find(&candidates).Error; err != nil {
		return nil, translate(err, "candidate")
	}
	return candidates, nil
}
