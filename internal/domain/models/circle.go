package models

import (
	"fmt"
	"github.com/bwmarrin/snowflake"
)

type CircleLinkStatus string

const (
	CircleLinkPending  CircleLinkStatus = "pending"
	CircleLinkAccepted CircleLinkStatus = "accepted"
	CircleLinkDeclined CircleLinkStatus = "declined"
)

// CircleLink is a trust edge between two orgs. Once accepted it is symmetric.
type CircleLink struct {
	Record
	RequestingOrgID snowflake.ID `gorm:"index"`
	TargetOrgID     snowflake.ID `gorm:"index"`
	PairKey         string
	Status          CircleLinkStatus
	InvitedBy       snowflake.ID
	RespondedBy     *snowflake.ID
}

// Partner returns the other side of the link as seen from orgID.
func (l CircleLink) Partner(orgID snowflake.ID) snowflake.ID {
	if l.RequestingOrgID == orgID {
		return l.TargetOrgID
	}
	return l.RequestingOrgID
}

// Circle is a named grouping of trusted partner orgs, owned by one org.
type Circle struct {
	Record
	OwnerOrgID snowflake.ID `gorm:"uniqueIndex:ux_circles_owner_slug,priority:1"`
	Name       string
	Slug       string `gorm:"uniqueIndex:ux_circles_owner_slug,priority:2"`
}

type CircleMember struct {
	Record
	CircleID snowflake.ID `gorm:"uniqueIndex:ux_circle_members_circle_org,priority:1"`
	OrgID    snowflake.ID `gorm:"uniqueIndex:ux_circle_members_circle_org,priority:2"`
}

// CirclePairKey is the same for both directions of a link between two orgs.
func CirclePairKey(a, b snowflake.ID) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
