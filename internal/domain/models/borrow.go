package models

import (
	"github.com/bwmarrin/snowflake"
	"time"
)

type BorrowScope string

const (
	ScopeInternal BorrowScope = "internal"
	ScopeCircle   BorrowScope = "circle"
	ScopeLocal    BorrowScope = "local"
)

func (s BorrowScope) Valid() bool {
	return s == ScopeInternal || s == ScopeCircle || s == ScopeLocal
}

type BorrowRequestStatus string

const (
	BorrowRequestOpen   BorrowRequestStatus = "open"
	BorrowRequestFilled BorrowRequestStatus = "filled"
	BorrowRequestClosed BorrowRequestStatus = "closed"
)

type BorrowRequest struct {
	Record
	OrgID              snowflake.ID `gorm:"index"`
	Location           string
	NormalizedLocation string
	Role               string
	WindowStart        time.Time
	WindowEnd          time.Time
	Scope              BorrowScope
	CircleID           *snowflake.ID
	Status             BorrowRequestStatus `gorm:"index"`
	FilledByOfferID    *snowflake.ID
	CreatedBy          snowflake.ID
}

func (r BorrowRequest) Window() TimeWindow {
	return TimeWindow{Start: r.WindowStart, End: r.WindowEnd}
}

type BorrowOfferStatus string

const (
	BorrowOfferPending  BorrowOfferStatus = "pending"
	BorrowOfferAccepted BorrowOfferStatus = "accepted"
	BorrowOfferDeclined BorrowOfferStatus = "declined"
	// BorrowOfferClosed is set on offers still pending when the request fills, closes or expires.
	BorrowOfferClosed BorrowOfferStatus = "closed"
)

type BorrowOffer struct {
	Record
	RequestID   snowflake.ID `gorm:"uniqueIndex:ux_borrow_offers_request_candidate,priority:1"`
	CandidateID snowflake.ID `gorm:"uniqueIndex:ux_borrow_offers_request_candidate,priority:2;index"`
	Status      BorrowOfferStatus
	RespondedAt *time.Time
}

// BorrowAcceptance is the outcome of a successful accept.
type BorrowAcceptance struct {
	Offer   BorrowOffer
	Request BorrowRequest
	Booking Booking
	Closed  int64
}
