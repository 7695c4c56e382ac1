package models

import (
	"github.com/bwmarrin/snowflake"
	"time"
)

// Record is embedded by every persisted entity. DemoSession tags rows written by a demo session.
type Record struct {
	ID          snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	DemoSession string       `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

func (w TimeWindow) Valid() bool {
	return !w.Start.IsZero() && w.End.After(w.Start)
}

func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

func (w TimeWindow) UTC() TimeWindow {
	return TimeWindow{Start: w.Start.UTC(), End: w.End.UTC()}
}
