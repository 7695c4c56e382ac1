package models

import (
	"github.com/bwmarrin/snowflake"
	"time"
)

type JobStatus string

const (
	JobNone      JobStatus = "none"
	JobDismissed JobStatus = "dismissed"
	JobSaved     JobStatus = "saved"
	JobApplying  JobStatus = "applying"
	JobApplied   JobStatus = "applied"
)

type ApplicationStatus string

const (
	ApplicationDraft     ApplicationStatus = "draft"
	ApplicationSubmitted ApplicationStatus = "submitted"
)

type SavedListing struct {
	Record
	CandidateID snowflake.ID `gorm:"uniqueIndex:ux_saved_listings_pair,priority:1"`
	ListingID   snowflake.ID `gorm:"uniqueIndex:ux_saved_listings_pair,priority:2"`
}

type DismissedListing struct {
	Record
	CandidateID snowflake.ID `gorm:"uniqueIndex:ux_dismissed_listings_pair,priority:1"`
	ListingID   snowflake.ID `gorm:"uniqueIndex:ux_dismissed_listings_pair,priority:2"`
}

type Application struct {
	Record
	CandidateID snowflake.ID `gorm:"uniqueIndex:ux_applications_pair,priority:1"`
	ListingID   snowflake.ID `gorm:"uniqueIndex:ux_applications_pair,priority:2;index"`
	Status      ApplicationStatus
	Note        string
	SubmittedAt *time.Time
}

// JobRecords are the three backing records of one (candidate, listing) pair. Any may be nil.
type JobRecords struct {
	Application *Application
	Saved       *SavedListing
	Dismissed   *DismissedListing
}

// CandidateJobState is derived, never stored.
type CandidateJobState struct {
	CandidateID   snowflake.ID
	ListingID     snowflake.ID
	Status        JobStatus
	ApplicationID snowflake.ID
	UpdatedAt     time.Time
}

// ResolveJobState applies the read precedence application > saved > dismissed > none.
func ResolveJobState(candidateID, listingID snowflake.ID, records JobRecords) CandidateJobState {
	state := CandidateJobState{CandidateID: candidateID, ListingID: listingID, Status: JobNone}

	switch {
	case records.Application != nil:
		state.ApplicationID = records.Application.ID
		state.UpdatedAt = records.Application.UpdatedAt
		if records.Application.Status == ApplicationSubmitted {
			state.Status = JobApplied
		} else {
			state.Status = JobApplying
		}
	case records.Saved != nil:
		state.Status = JobSaved
		state.UpdatedAt = records.Saved.UpdatedAt
	case records.Dismissed != nil:
		state.Status = JobDismissed
		state.UpdatedAt = records.Dismissed.UpdatedAt
	}

	return state
}
