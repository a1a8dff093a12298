package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FilingStatus string

const (
	StatusPending  FilingStatus = "pending"
	StatusApproved FilingStatus = "approved"
	StatusDeclined FilingStatus = "declined"
)

func (s FilingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined:
		return true
	}
	return false
}

// Decision is the outcome an administrator applies to a pending filing.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDecline Decision = "decline"
)

func (d Decision) Status() (FilingStatus, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionDecline:
		return StatusDeclined, true
	}
	return "", false
}

type OvertimeFiling struct {
	ID         string       `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	UserID     string       `gorm:"not null;size:36;index:idx_overtime_user_start,priority:1" json:"user_id"`
	User       *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	StartTime  time.Time    `gorm:"not null;index:idx_overtime_user_start,priority:2" json:"start_time"`
	EndTime    time.Time    `gorm:"not null" json:"end_time"`
	Reason     string       `gorm:"not null;size:1000" json:"reason"`
	Status     FilingStatus `gorm:"not null;size:20;index" json:"status"`
	ReviewerID *string      `gorm:"size:36" json:"reviewer_id"`
	Reviewer   *User        `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
	ReviewedAt *time.Time   `json:"reviewed_at"`
	Version    int          `gorm:"not null;default:1" json:"version"`
}

func (f *OvertimeFiling) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.Version == 0 {
		f.Version = 1
	}
	return nil
}

// Overlaps applies the half-open interval test against [start, end).
func (f *OvertimeFiling) Overlaps(start, end time.Time) bool {
	return f.StartTime.Before(end) && f.EndTime.After(start)
}

func (f *OvertimeFiling) Duration() time.Duration {
	return f.EndTime.Sub(f.StartTime)
}

// FilingQuery filters ListFilings. Zero fields are ignored.
type FilingQuery struct {
	UserID    string
	Statuses  []FilingStatus
	ExcludeID string

	// OverlapsFrom/OverlapsTo select filings intersecting [from, to). A zero
	// bound leaves that side open.
	OverlapsFrom time.Time
	OverlapsTo   time.Time

	// StartsFrom/StartsBefore select filings whose start falls in [from, before).
	StartsFrom   time.Time
	StartsBefore time.Time

	// NameContains filters by case-insensitive employee full name substring.
	NameContains string
	OrderBy      string
	Descending   bool
	WithUsers    bool
}
