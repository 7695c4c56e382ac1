package models

import (
	"github.com/bwmarrin/snowflake"
	"time"
)

type ListingKind string

const (
	ListingJob        ListingKind = "job"
	ListingShiftCover ListingKind = "shift_cover"
)

type ListingStatus string

const (
	ListingDraft     ListingStatus = "draft"
	ListingPublished ListingStatus = "published"
	ListingMatching  ListingStatus = "matching"
	ListingClosed    ListingStatus = "closed"
)

type Listing struct {
	Record
	OrgID              snowflake.ID `gorm:"index"`
	Kind               ListingKind
	Role               string
	Location           string
	NormalizedLocation string `gorm:"index"`
	StartDate          time.Time
	EndDate            time.Time
	Status             ListingStatus `gorm:"index"`
}

// Open reports whether candidates may still interact with the listing.
func (l Listing) Open() bool {
	return l.Status == ListingPublished || l.Status == ListingMatching
}

type ListingFilter struct {
	Location string
	Role     string
	Kind     ListingKind
	From     time.Time
	Limit    int
}
