package repositories

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type Memberships struct {
	db *gorm.DB
}

func NewMembershipsRepository(db *gorm.DB) *Memberships {
	return &Memberships{db: db}
}

func (repo *Memberships) AddOrg(ctx context.Context, org models.Org) error {
	return translate(repo.db.WithContext(ctx).Create(&org).Error, "org")
}

func (repo *Memberships) GetOrg(ctx context.Context, id snowflake.ID) (*models.Org, error) {
	var org models.Org
	if err := repo.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		return nil, translate(err, "org")
	}
	return &org, nil
}

func (repo *Memberships) AddMember(ctx context.Context, member models.OrgMember) error {
	return translate(repo.db.WithContext(ctx).Create(&member).Error, "org member")
}

func (repo *Memberships) IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&models.OrgMember{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).Count(&count).Error
	if err != nil {
		return false, translate(err, "org member")
	}
	return count > 0, nil
}

func (repo *Memberships) ListByUser(ctx context.Context, userID snowflake.ID) ([]models.OrgMembership, error) {
	var members []models.OrgMember
	if err := repo.db.WithContext(ctx).Order("org_id").Find(&members, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err, "org member")
	}
	return lo.Map(members, func(m models.OrgMember, _ int) models.OrgMembership {
		return models.OrgMembership{OrgID: m.OrgID, Role: m.Role}
	}), nil
}

// ListMembers returns the user ids of everyone in the org.
func (repo *Memberships) ListMembers(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error) {
	var userIDs []snowflake.ID
	err := repo.db.WithContext(ctx).Model(&models.OrgMember{}).
		Where("org_id = ?", orgID).Order("user_id").Pluck("user_id", &userIDs).Error
	return userIDs, translate(err, "org member")
}
