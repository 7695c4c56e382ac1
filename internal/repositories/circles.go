package repositories

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"time"
)

type Circles struct {
	db *gorm.DB
}

func NewCirclesRepository(db *gorm.DB) *Circles {
	return &Circles{db: db}
}

// AddLink inserts a pending link. ok is false when a pending or accepted link already joins the pair.
func (repo *Circles) AddLink(ctx context.Context, link models.CircleLink) (bool, error) {
	link.PairKey = models.CirclePairKey(link.RequestingOrgID, link.TargetOrgID)
	err := repo.db.WithContext(ctx).Create(&link).Error
	if isUniqueViolation(err) {
		return false, nil
	}
	return err == nil, translate(err, "circle link")
}

func (repo *Circles) GetLink(ctx context.Context, id snowflake.ID) (*models.CircleLink, error) {
	var link models.CircleLink
	if err := repo.db.WithContext(ctx).First(&link, "id = ?", id).Error; err != nil {
		return nil, translate(err, "circle link")
	}
	return &link, nil
}

// FindActiveLink returns the pending or accepted link between two orgs in either direction, or nil.
func (repo *Circles) FindActiveLink(ctx context.Context, orgA, orgB snowflake.ID) (*models.CircleLink, error) {
	var link models.CircleLink
	found, err := first(repo.db.WithContext(ctx), &link, "pair_key = ? AND status IN ?",
		models.CirclePairKey(orgA, orgB), []models.CircleLinkStatus{models.CircleLinkPending, models.CircleLinkAccepted})
	if err != nil || !found {
		return nil, translate(err, "circle link")
	}
	return &link, nil
}

// Respond resolves a pending link addressed to targetOrgID.
func (repo *Circles) Respond(ctx context.Context, linkID, targetOrgID, actorID snowflake.ID,
	status models.CircleLinkStatus, now time.Time) (bool, error) {

	result := repo.db.WithContext(ctx).Model(&models.CircleLink{}).
		Where("id = ? AND target_org_id = ? AND status = ?", linkID, targetOrgID, models.CircleLinkPending).
		Updates(map[string]any{"status": status, "responded_by": actorID, "updated_at": now})
	if result.Error != nil {
		return false, translate(result.Error, "circle link")
	}
	return result.RowsAffected == 1, nil
}

func (repo *Circles) IsTrusted(ctx context.Context, orgA, orgB snowflake.ID) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&models.CircleLink{}).
		Where("pair_key = ? AND status = ?", models.CirclePairKey(orgA, orgB), models.CircleLinkAccepted).
		Count(&count).Error
	return count > 0, translate(err, "circle link")
}

// TrustedPartners lists every org holding an accepted link with orgID.
func (repo *Circles) TrustedPartners(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error) {
	var links []models.CircleLink
	err := repo.db.WithContext(ctx).
		Where("status = ? AND (requesting_org_id = ? OR target_org_id = ?)", models.CircleLinkAccepted, orgID, orgID).
		Order("id").Find(&links).Error
	if err != nil {
		return nil, translate(err, "circle link")
	}

	partners := make([]snowflake.ID, 0, len(links))
	for _, link := range links {
		partners = append(partners, link.Partner(orgID))
	}
	return partners, nil
}

func (repo *Circles) ListPendingFor(ctx context.Context, orgID snowflake.ID) ([]models.CircleLink, error) {
	var links []models.CircleLink
	err := repo.db.WithContext(ctx).Order("created_at").
		Find(&links, "target_org_id = ? AND status = ?", orgID, models.CircleLinkPending).Error
	return links, translate(err, "circle link")
}

func (repo *Circles) AddCircle(ctx context.Context, circle models.Circle) (bool, error) {
	err := repo.db.WithContext(ctx).Create(&circle).Error
	if isUniqueViolation(err) {
		return false, nil
	}
	return err == nil, translate(err, "circle")
}

func (repo *Circles) GetCircle(ctx context.Context, id snowflake.ID) (*models.Circle, error) {
	var circle models.Circle
	if err := repo.db.WithContext(ctx).First(&circle, "id = ?", id).Error; err != nil {
		return nil, translate(err, "circle")
	}
	return &circle, nil
}

func (repo *Circles) AddMember(ctx context.Context, member models.CircleMember) error {
	return translate(repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "circle_id"}, {Name: "org_id"}},
		DoNothing: true,
	}).Create(&member).Error, "circle member")
}

func (repo *Circles) RemoveMember(ctx context.Context, circleID, orgID snowflake.ID) (bool, error) {
	result := repo.db.WithContext(ctx).Delete(&models.CircleMember{}, "circle_id = ? AND org_id = ?", circleID, orgID)
	return result.RowsAffected > 0, translate(result.Error, "circle member")
}

func (repo *Circles) MemberOrgs(ctx context.Context, circleID snowflake.ID) ([]snowflake.ID, error) {
	var orgIDs []snowflake.ID
	err := repo.db.WithContext(ctx).Model(&models.CircleMember{}).
		Where("circle_id = ?", circleID).Order("org_id").Pluck("org_id", &orgIDs).Error
	return orgIDs, translate(err, "circle member")
}
