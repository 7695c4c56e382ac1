package repositories

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Matches struct {
	db *gorm.DB
}

func NewMatchesRepository(db *gorm.DB) *Matches {
	return &Matches{db: db}
}

// CreateIfAbsent inserts the match unless one already exists for the pair and returns the stored row.
// created is true only for the caller whose insert won.
func (repo *Matches) CreateIfAbsent(ctx context.Context, match models.Match) (stored *models.Match, created bool, err error) {
	return createMatchIfAbsent(repo.db.WithContext(ctx), match)
}

func createMatchIfAbsent(db *gorm.DB, match models.Match) (*models.Match, bool, error) {
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "listing_id"}, {Name: "candidate_id"}},
		DoNothing: true,
	}).Create(&match)
	if result.Error != nil {
		return nil, false, translate(result.Error, "match")
	}

	var stored models.Match
	if err := db.First(&stored, "listing_id = ? AND candidate_id = ?", match.ListingID, match.CandidateID).Error; err != nil {
		return nil, false, translate(err, "match")
	}
	return &stored, result.RowsAffected > 0, nil
}

func (repo *Matches) GetByID(ctx context.Context, id snowflake.ID) (*models.Match, error) {
	var match models.Match
	if err := repo.db.WithContext(ctx).First(&match, "id = ?", id).Error; err != nil {
		return nil, translate(err, "match")
	}
	return &match, nil
}

func (repo *Matches) FindByPair(ctx context.Context, listingID, candidateID snowflake.ID) (*models.Match, error) {
	var match models.Match
	found, err := first(repo.db.WithContext(ctx), &match, "listing_id = ? AND candidate_id = ?", listingID, candidateID)
	if err != nil || !found {
		return nil, translate(err, "match")
	}
	return &match, nil
}

func (repo *Matches) CountByPair(ctx context.Context, listingID, candidateID snowflake.ID) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&models.Match{}).
		Where("listing_id = ? AND candidate_id = ?", listingID, candidateID).Count(&count).Error
	return count, translate(err, "match")
}

func (repo *Matches) ListByCandidate(ctx context.Context, candidateID snowflake.ID) ([]models.Match, error) {
	var matches []models.Match
	err := repo.db.WithContext(ctx).Order("created_at DESC").Find(&matches, "candidate_id = ?", candidateID).Error
	return matches, translate(err, "match")
}

func (repo *Matches) ListByOrg(ctx context.Context, orgID snowflake.ID) ([]models.Match, error) {
	var matches []models.Match
	err := repo.db.WithContext(ctx).Order("created_at DESC").Find(&matches, "org_id = ?", orgID).Error
	return matches, translate(err, "match")
}

func (repo *Matches) UpdateStatus(ctx context.Context, id snowflake.ID, status models.MatchStatus) error {
	return translate(repo.db.WithContext(ctx).Model(&models.Match{}).Where("id = ?", id).
		Update("status", status).Error, "match")
}
