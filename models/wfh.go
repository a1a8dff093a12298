package models

import (
	"database/sql/driver"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Weekdays is a set of weekday numbers, 0 = Sunday through 6 = Saturday.
// It is stored as integer[] on Postgres and as array text elsewhere.
type Weekdays []int64

func (w Weekdays) Value() (driver.Value, error) {
	if w == nil {
		w = Weekdays{}
	}
	return pq.Int64Array(w).Value()
}

func (w *Weekdays) Scan(src any) error {
	if src == nil {
		*w = Weekdays{}
		return nil
	}
	var arr pq.Int64Array
	if err := arr.Scan(src); err != nil {
		return err
	}
	*w = Weekdays(arr)
	return nil
}

func (Weekdays) GormDataType() string { return "weekdays" }

func (Weekdays) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "integer[]"
	}
	return "text"
}

func (w Weekdays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == int64(day) {
			return true
		}
	}
	return false
}

// Normalized returns the days sorted with duplicates removed.
func (w Weekdays) Normalized() Weekdays {
	seen := make(map[int64]bool, len(w))
	out := make(Weekdays, 0, len(w))
	for _, d := range w {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Label joins the weekday names, or returns "Not set" for an empty set.
func (w Weekdays) Label() string {
	days := w.Normalized()
	if len(days) == 0 {
		return "Not set"
	}
	names := make([]string, 0, len(days))
	for _, d := range days {
		if d >= 0 && d <= 6 {
			names = append(names, time.Weekday(d).String())
		}
	}
	return strings.Join(names, ", ")
}

type WfhSchedule struct {
	UserID     string    `gorm:"primaryKey;size:36" json:"user_id"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	DaysOfWeek Weekdays  `gorm:"not null" json:"days_of_week"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type OneOffWfhDay struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `gorm:"not null;size:36;uniqueIndex:idx_one_off_user_date,priority:1" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Date      time.Time `gorm:"not null;type:date;uniqueIndex:idx_one_off_user_date,priority:2" json:"date"`
	Reason    string    `gorm:"size:1000" json:"reason"`
}

func (d *OneOffWfhDay) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}
