package models

import "github.com/bwmarrin/snowflake"

type MatchStatus string

const (
	MatchMatched   MatchStatus = "matched"
	MatchChatting  MatchStatus = "chatting"
	MatchCompleted MatchStatus = "completed"
)

type Match struct {
	Record
	OrgID       snowflake.ID `gorm:"index"`
	ListingID   snowflake.ID `gorm:"uniqueIndex:ux_matches_listing_candidate,priority:1"`
	CandidateID snowflake.ID `gorm:"uniqueIndex:ux_matches_listing_candidate,priority:2;index"`
	Status      MatchStatus
}
