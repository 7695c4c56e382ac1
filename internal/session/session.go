// Package session carries the caller's identity and data-source mode through every marketplace call.
package session

import (
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
)

type Mode string

const (
	Live Mode = "live"
	Demo Mode = "demo"
)

type Session struct {
	UserID        snowflake.ID
	Mode          Mode
	DemoSessionID string
}

func NewLive(userID snowflake.ID) Session {
	return Session{UserID: userID, Mode: Live}
}

// NewDemo opens a fresh demo session. Every record it writes is tagged with the generated id.
func NewDemo(userID snowflake.ID) Session {
	return Session{UserID: userID, Mode: Demo, DemoSessionID: uuid.NewString()}
}

// Actor returns the authenticated user id.
func (s Session) Actor() (snowflake.ID, error) {
	if s.UserID == 0 {
		return 0, errs.New(errs.Forbidden, "not authenticated")
	}
	return s.UserID, nil
}

// Tag is the value stored alongside every write made in this session.
func (s Session) Tag() string {
	if s.Mode == Demo {
		return s.DemoSessionID
	}
	return ""
}

func (s Session) IsDemo() bool {
	return s.Mode == Demo
}
