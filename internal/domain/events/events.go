package events

import (
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
)

const (
	MatchCreatedTopic        = "MatchCreatedEvent"
	OfferSentTopic           = "OfferSentEvent"
	OfferResolvedTopic       = "OfferResolvedEvent"
	BorrowOfferReceivedTopic = "BorrowOfferReceivedEvent"
	BorrowRequestFilledTopic = "BorrowRequestFilledEvent"
	CircleInviteTopic        = "CircleInviteEvent"
)

type MatchCreated struct {
	Match models.Match
}

type OfferSent struct {
	Offer models.Offer
}

type OfferResolved struct {
	Offer     models.Offer
	BookingID snowflake.ID
}

type BorrowOfferReceived struct {
	Request models.BorrowRequest
	Offer   models.BorrowOffer
}

type BorrowRequestFilled struct {
	Acceptance models.BorrowAcceptance
}

type CircleInvite struct {
	Link models.CircleLink
}
