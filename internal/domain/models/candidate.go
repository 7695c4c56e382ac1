package models

import (
	"github.com/bwmarrin/snowflake"
	"time"
)

type Visibility string

const (
	// VisibilityPublic candidates appear in the local pool and, through their employers, in circle pools.
	VisibilityPublic Visibility = "public"
	// VisibilityCircle candidates are only shared with trusted partners of orgs they matched with.
	VisibilityCircle  Visibility = "circle"
	VisibilityPrivate Visibility = "private"
)

// Candidate is the talent profile. Its ID equals the user id of the candidate.
type Candidate struct {
	Record
	Name               string
	Location           string
	NormalizedLocation string `gorm:"index"`
	Visibility         Visibility
}

func NewCandidate(userID snowflake.ID, name, location string, visibility Visibility) Candidate {
	return Candidate{
		Record:             Record{ID: userID},
		Name:               name,
		Location:           location,
		NormalizedLocation: NormalizeLocation(location),
		Visibility:         visibility,
	}
}

// AvailabilityBlock marks a window in which the candidate can not be booked.
type AvailabilityBlock struct {
	Record
	CandidateID snowflake.ID `gorm:"index"`
	StartsAt    time.Time
	EndsAt      time.Time
}
