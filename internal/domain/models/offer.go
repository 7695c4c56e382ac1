package models

import (
	"fmt"
	"github.com/bwmarrin/snowflake"
	"time"
)

type OfferStatus string

const (
	OfferDraft     OfferStatus = "draft"
	OfferSent      OfferStatus = "sent"
	OfferAccepted  OfferStatus = "accepted"
	OfferDeclined  OfferStatus = "declined"
	OfferWithdrawn OfferStatus = "withdrawn"
	OfferExpired   OfferStatus = "expired"
)

func (s OfferStatus) Terminal() bool {
	switch s {
	case OfferAccepted, OfferDeclined, OfferWithdrawn, OfferExpired:
		return true
	default:
		return false
	}
}

// ActiveOfferStatuses block a second offer from being sent for the same subject.
var ActiveOfferStatuses = []OfferStatus{OfferSent, OfferAccepted}

type OfferPayload struct {
	Role       string    `validate:"required"`
	StartDate  time.Time `validate:"required"`
	EndDate    *time.Time
	HourlyPay  float64 `validate:"gte=0"`
	Currency   string  `validate:"omitempty,len=3"`
	Housing    bool
	HousingFee float64 `validate:"gte=0"`
	Note       string  `validate:"max=2000"`
}

type Offer struct {
	Record
	OrgID       snowflake.ID  `gorm:"index"`
	CandidateID snowflake.ID  `gorm:"index"`
	MatchID     *snowflake.ID `gorm:"index"`
	ListingID   *snowflake.ID `gorm:"index"`
	SubjectKey  string
	Status      OfferStatus `gorm:"index"`
	CreatedBy   snowflake.ID
	Payload     OfferPayload `gorm:"embedded;embeddedPrefix:payload_"`
	SentAt      *time.Time
	RespondedAt *time.Time
	ExpiresAt   *time.Time
}

// OfferSubjectKey identifies what an offer is about. A match belongs to exactly one listing, so the
// listing is preferred and offers made through a match or directly on its listing share one key.
func OfferSubjectKey(matchID, listingID *snowflake.ID) string {
	if listingID != nil {
		return fmt.Sprintf("listing:%d", *listingID)
	}
	if matchID != nil {
		return fmt.Sprintf("match:%d", *matchID)
	}
	return ""
}
