package models

import (
	"github.com/bwmarrin/snowflake"
	"time"
)

type BookingSource string

const (
	BookingFromOffer  BookingSource = "offer"
	BookingFromBorrow BookingSource = "borrow"
	BookingDirect     BookingSource = "direct"
)

type Booking struct {
	Record
	OrgID       snowflake.ID `gorm:"index"`
	CandidateID snowflake.ID `gorm:"index"`
	StartsAt    time.Time
	EndsAt      time.Time
	Source      BookingSource `gorm:"uniqueIndex:ux_bookings_source,priority:1"`
	SourceID    snowflake.ID  `gorm:"uniqueIndex:ux_bookings_source,priority:2"`
}
