// Package scheduling holds the overtime and WFH rules: conflict detection,
// the filing lifecycle, calendar day classification and hour aggregation.
package scheduling

import (
	"context"
	"time"

	"teamsched/apperr"
	"teamsched/models"
	"teamsched/store"
)

const (
	msgEndBeforeStart = "End date and time must be after start date and time."
	msgWeekendWfh     = "Cannot file for WFH on a weekend."
)

// ConflictValidator decides whether a proposed filing may be persisted.
// Callers run it inside the same transaction as the write it guards.
type ConflictValidator struct {
	loc *time.Location
}

func NewConflictValidator(loc *time.Location) *ConflictValidator {
	if loc == nil {
		loc = time.UTC
	}
	return &ConflictValidator{loc: loc}
}

// Overlapping returns the filings in existing whose [start, end) intersects
// the proposed interval, skipping excludeID.
func Overlapping(existing []models.OvertimeFiling, start, end time.Time, excludeID string) []models.OvertimeFiling {
	var hits []models.OvertimeFiling
	for _, f := range existing {
		if excludeID != "" && f.ID == excludeID {
			continue
		}
		if f.Overlaps(start, end) {
			hits = append(hits, f)
		}
	}
	return hits
}

// ValidateOvertimeSubmission rejects [start, end) when it intersects any
// approved filing of userID other than excludeID. Touching intervals pass.
func (v *ConflictValidator) ValidateOvertimeSubmission(ctx context.Context, repo store.Repository, userID string, start, end time.Time, excludeID string) error {
	if !end.After(start) {
		return apperr.FieldError("end_time", msgEndBeforeStart)
	}

	approved, err := repo.ListApprovedFilings(ctx, userID, start, end)
	if err != nil {
		return err
	}
	if len(Overlapping(approved, start, end, excludeID)) > 0 {
		return apperr.Conflict(apperr.ErrOverlap)
	}
	return nil
}

// ValidateOneOffWfhSubmission rejects weekend dates and dates on which an
// approved filing of userID starts. date is a civil date.
func (v *ConflictValidator) ValidateOneOffWfhSubmission(ctx context.Context, repo store.Repository, userID string, date time.Time) error {
	if models.IsWeekend(date.Weekday()) {
		return apperr.FieldError("date", msgWeekendWfh)
	}

	dayStart := models.DayStart(date, v.loc)
	filings, err := repo.ListFilings(ctx, models.FilingQuery{
		UserID:       userID,
		Statuses:     []models.FilingStatus{models.StatusApproved},
		StartsFrom:   dayStart,
		StartsBefore: dayStart.AddDate(0, 0, 1),
	})
	if err != nil {
		return err
	}
	if len(filings) > 0 {
		return apperr.Conflict(apperr.ErrOneOffOnOvertime)
	}
	return nil
}
