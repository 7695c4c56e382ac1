package repositories

import (
	"context"
	"fmt"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	gocache "github.com/patrickmn/go-cache"
	"time"
)

type membershipRepository interface {
	AddMember(ctx context.Context, member models.OrgMember) error
	IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]models.OrgMembership, error)
}

// CachedMemberships memoizes membership checks, which run on nearly every write.
type CachedMemberships struct {
	repo  membershipRepository
	cache *gocache.Cache
}

func NewCachedMemberships(repo membershipRepository, ttl time.Duration) *CachedMemberships {
	return &CachedMemberships{repo: repo, cache: gocache.New(ttl, 2*ttl)}
}

func (c *CachedMemberships) AddMember(ctx context.Context, member models.OrgMember) error {
	err := c.repo.AddMember(ctx, member)
	c.cache.Delete(memberKey(member.OrgID, member.UserID))
	c.cache.Delete(userKey(member.UserID))
	return err
}

func (c *CachedMemberships) IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error) {
	key := memberKey(orgID, userID)
	if value, found := c.cache.Get(key); found {
		return value.(bool), nil
	}

	isMember, err := c.repo.IsMember(ctx, orgID, userID)
	if err != nil {
		return false, err
	}
	c.cache.SetDefault(key, isMember)
	return isMember, nil
}

func (c *CachedMemberships) ListByUser(ctx context.Context, userID snowflake.ID) ([]models.OrgMembership, error) {
	key := userKey(userID)
	if value, found := c.cache.Get(key); found {
		return value.([]models.OrgMembership), nil
	}

	memberships, err := c.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, memberships)
	return memberships, nil
}

func memberKey(orgID, userID snowflake.ID) string {
	return fmt.Sprintf("member:%d:%d", orgID, userID)
}

func userKey(userID snowflake.ID) string {
	return fmt.Sprintf("orgs:%d", userID)
}
