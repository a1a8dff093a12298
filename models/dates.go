package models

import "time"

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// CivilDate returns the calendar date of t in loc as midnight UTC.
// One-off WFH dates are stored in this form.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayStart returns local midnight of the civil date in loc.
func DayStart(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DateKey formats the civil date part of t.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

func IsWeekend(day time.Weekday) bool {
	return day == time.Saturday || day == time.Sunday
}

// Month is a calendar month in the configured location.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return Month{}, err
	}
	return MonthOf(t), nil
}

func (m Month) String() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format(MonthLayout)
}

// Bounds returns [first day 00:00, first day of next month 00:00) in loc.
func (m Month) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// Grid returns the first and last date of the Sunday-first week grid covering the month.
func (m Month) Grid(loc *time.Location) (time.Time, time.Time) {
	start, next := m.Bounds(loc)
	last := next.AddDate(0, 0, -1)
	gridStart := start.AddDate(0, 0, -int(start.Weekday()))
	gridEnd := last.AddDate(0, 0, 6-int(last.Weekday()))
	return gridStart, gridEnd
}

// MonthData bundles one user's records needed to render a month grid.
type MonthData struct {
	UserID   string
	Schedule Weekdays
	OneOffs  []OneOffWfhDay
	Filings  []OvertimeFiling
}

// TeamMonthData bundles every user's WFH records for the admin calendar.
type TeamMonthData struct {
	Schedules []WfhSchedule
	OneOffs   []OneOffWfhDay
}
