package scheduling

import (
	"time"

	"teamsched/models"
)

// Segment is the part of one filing that falls on one calendar day.
type Segment struct {
	FilingID string    `json:"filing_id"`
	Date     string    `json:"date"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Hours    int       `json:"hours"`
	RestDay  bool      `json:"rest_day"`
}

type HoursSummary struct {
	From            string    `json:"from"`
	To              string    `json:"to"`
	RegularDayHours int       `json:"regular_day_hours"`
	RestDayHours    int       `json:"rest_day_hours"`
	Segments        []Segment `json:"segments"`
}

func (h HoursSummary) TotalHours() int {
	return h.RegularDayHours + h.RestDayHours
}

// IsWorkday reports whether a weekday counts toward regular-day overtime:
// Monday to Friday, or any day in the user's WFH schedule.
func IsWorkday(weekday time.Weekday, schedule models.Weekdays) bool {
	return !models.IsWeekend(weekday) || schedule.Contains(weekday)
}

// SplitByDay cuts [start, end) at local midnights in loc.
func SplitByDay(start, end time.Time, loc *time.Location) [][2]time.Time {
	var parts [][2]time.Time
	day := models.DayStart(models.CivilDate(start, loc), loc)
	for day.Before(end) {
		next := day.AddDate(0, 0, 1)
		s, e := maxTime(start, day), minTime(end, next)
		if e.After(s) {
			parts = append(parts, [2]time.Time{s, e})
		}
		day = next
	}
	return parts
}

// AggregateHours totals approved overtime inside [from, to). Each day segment
// is floored to whole hours on its own, so a filing never contributes more
// than its full hours and partial hours on either side of midnight are dropped.
func AggregateHours(filings []models.OvertimeFiling, schedule models.Weekdays, from, to time.Time, loc *time.Location) HoursSummary {
	summary := HoursSummary{
		From:     models.DateKey(from.In(loc)),
		To:       models.DateKey(to.In(loc).AddDate(0, 0, -1)),
		Segments: []Segment{},
	}

	for _, f := range filings {
		if f.Status != models.StatusApproved {
			continue
		}
		start, end := maxTime(f.StartTime, from), minTime(f.EndTime, to)
		if !end.After(start) {
			continue
		}

		for _, part := range SplitByDay(start, end, loc) {
			local := part[0].In(loc)
			seg := Segment{
				FilingID: f.ID,
				Date:     models.DateKey(local),
				Start:    local,
				End:      part[1].In(loc),
				Hours:    int(part[1].Sub(part[0]) / time.Hour),
				RestDay:  !IsWorkday(local.Weekday(), schedule),
			}
			if seg.RestDay {
				summary.RestDayHours += seg.Hours
			} else {
				summary.RegularDayHours += seg.Hours
			}
			summary.Segments = append(summary.Segments, seg)
		}
	}
	return summary
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
