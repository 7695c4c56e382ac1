package models

import "github.com/bwmarrin/snowflake"

type Org struct {
	Record
	Name string
}

type OrgRole string

const (
	RoleOwner   OrgRole = "owner"
	RoleManager OrgRole = "manager"
	RoleStaff   OrgRole = "staff"
)

type OrgMember struct {
	Record
	OrgID  snowflake.ID `gorm:"uniqueIndex:ux_org_members_org_user,priority:1"`
	UserID snowflake.ID `gorm:"uniqueIndex:ux_org_members_org_user,priority:2;index"`
	Role   OrgRole
}

type OrgMembership struct {
	OrgID snowflake.ID
	Role  OrgRole
}
