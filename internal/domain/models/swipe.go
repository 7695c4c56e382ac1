package models

import "github.com/bwmarrin/snowflake"

type Side string

const (
	SideTalent   Side = "talent"
	SideEmployer Side = "employer"
)

func (s Side) Opposite() Side {
	if s == SideTalent {
		return SideEmployer
	}
	return SideTalent
}

type Direction string

const (
	Yes Direction = "yes"
	No  Direction = "no"
)

func (d Direction) Valid() bool {
	return d == Yes || d == No
}

// Swipe is unique per (side, actor, listing, candidate). On the talent side ActorID equals CandidateID.
type Swipe struct {
	Record
	Side        Side         `gorm:"uniqueIndex:ux_swipes_actor_target,priority:1"`
	ActorID     snowflake.ID `gorm:"uniqueIndex:ux_swipes_actor_target,priority:2"`
	ListingID   snowflake.ID `gorm:"uniqueIndex:ux_swipes_actor_target,priority:3;index:ix_swipes_pair,priority:1"`
	CandidateID snowflake.ID `gorm:"uniqueIndex:ux_swipes_actor_target,priority:4;index:ix_swipes_pair,priority:2"`
	Direction   Direction
}
