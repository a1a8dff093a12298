package scheduling

import (
	"sort"
	"time"

	"teamsched/models"
)

// Tag is the rendered classification of one calendar day.
type Tag string

const (
	TagNone                 Tag = "none"
	TagWfh                  Tag = "wfh"
	TagOneOffWfh            Tag = "oneOffWfh"
	TagOvertime             Tag = "overtime"
	TagWfhAndOvertime       Tag = "wfhAndOvertime"
	TagOneOffWfhAndOvertime Tag = "oneOffWfhAndOvertime"
	TagPending              Tag = "pending"
)

// SegmentKind places a calendar day within the filing that touches it.
type SegmentKind string

const (
	SegmentSingle SegmentKind = "single"
	SegmentStart  SegmentKind = "start"
	SegmentMiddle SegmentKind = "middle"
	SegmentEnd    SegmentKind = "end"
)

type OvertimeEntry struct {
	FilingID string              `json:"filing_id"`
	Kind     SegmentKind         `json:"kind"`
	Start    time.Time           `json:"start"`
	End      time.Time           `json:"end"`
	Status   models.FilingStatus `json:"status"`
	Reason   string              `json:"reason"`
}

type Day struct {
	Date       string          `json:"date"`
	Weekday    int             `json:"weekday"`
	InMonth    bool            `json:"in_month"`
	IsWeekend  bool            `json:"is_weekend"`
	IsToday    bool            `json:"is_today"`
	RegularWfh bool            `json:"regular_wfh"`
	OneOffWfh  bool            `json:"one_off_wfh"`
	HasPending bool            `json:"has_pending"`
	Overtime   []OvertimeEntry `json:"overtime"`
	Tag        Tag             `json:"tag"`
}

type MonthView struct {
	Month string `json:"month"`
	Days  []Day  `json:"days"`
}

// ExpandFiling splits a filing into one entry per calendar day it covers in
// loc, keyed by date. A filing ending exactly at midnight does not touch the
// following day.
func ExpandFiling(f models.OvertimeFiling, loc *time.Location) map[string]OvertimeEntry {
	first := models.CivilDate(f.StartTime, loc)
	last := models.CivilDate(f.EndTime, loc)
	if f.EndTime.After(f.StartTime) && f.EndTime.Equal(models.DayStart(last, loc)) {
		last = last.AddDate(0, 0, -1)
	}
	if last.Before(first) {
		last = first
	}

	entry := OvertimeEntry{
		FilingID: f.ID,
		Start:    f.StartTime.In(loc),
		End:      f.EndTime.In(loc),
		Status:   f.Status,
		Reason:   f.Reason,
	}

	out := make(map[string]OvertimeEntry)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		e := entry
		switch {
		case first.Equal(last):
			e.Kind = SegmentSingle
		case d.Equal(first):
			e.Kind = SegmentStart
		case d.Equal(last):
			e.Kind = SegmentEnd
		default:
			e.Kind = SegmentMiddle
		}
		out[models.DateKey(d)] = e
	}
	return out
}

// ClassifyDay combines the per-day facts into a single tag. Pending overtime
// wins over everything else and a one-off WFH day wins over the regular schedule.
// Weekends never count as WFH.
func ClassifyDay(weekday time.Weekday, regularWfh, oneOffWfh bool, entries []OvertimeEntry) Tag {
	if models.IsWeekend(weekday) {
		regularWfh, oneOffWfh = false, false
	}

	hasOvertime := false
	for _, e := range entries {
		switch e.Status {
		case models.StatusPending:
			return TagPending
		case models.StatusApproved:
			hasOvertime = true
		}
	}

	switch {
	case oneOffWfh && hasOvertime:
		return TagOneOffWfhAndOvertime
	case oneOffWfh:
		return TagOneOffWfh
	case regularWfh && hasOvertime:
		return TagWfhAndOvertime
	case regularWfh:
		return TagWfh
	case hasOvertime:
		return TagOvertime
	}
	return TagNone
}

// Classify renders the Sunday-first week grid for month from one user's data.
func Classify(month models.Month, data *models.MonthData, loc *time.Location, now time.Time) MonthView {
	oneOffs := make(map[string]bool, len(data.OneOffs))
	for _, d := range data.OneOffs {
		oneOffs[models.DateKey(d.Date)] = true
	}

	entries := make(map[string][]OvertimeEntry)
	for _, f := range data.Filings {
		if f.Status == models.StatusDeclined {
			continue
		}
		for key, e := range ExpandFiling(f, loc) {
			entries[key] = append(entries[key], e)
		}
	}

	today := models.DateKey(models.CivilDate(now, loc))
	gridStart, gridEnd := month.Grid(loc)

	view := MonthView{Month: month.String()}
	for d := gridStart; !d.After(gridEnd); d = d.AddDate(0, 0, 1) {
		key := models.DateKey(d)
		weekday := d.Weekday()
		weekend := models.IsWeekend(weekday)

		dayEntries := entries[key]
		sortEntries(dayEntries)

		day := Day{
			Date:       key,
			Weekday:    int(weekday),
			InMonth:    d.Month() == month.Month && d.Year() == month.Year,
			IsWeekend:  weekend,
			IsToday:    key == today,
			RegularWfh: !weekend && data.Schedule.Contains(weekday),
			OneOffWfh:  !weekend && oneOffs[key],
			Overtime:   dayEntries,
		}
		for _, e := range dayEntries {
			if e.Status == models.StatusPending {
				day.HasPending = true
			}
		}
		if day.Overtime == nil {
			day.Overtime = []OvertimeEntry{}
		}
		day.Tag = ClassifyDay(weekday, day.RegularWfh, day.OneOffWfh, dayEntries)
		view.Days = append(view.Days, day)
	}
	return view
}

// sortEntries lists filings ending on the day first, then by start.
func sortEntries(entries []OvertimeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ei, ej := entries[i].Kind == SegmentEnd, entries[j].Kind == SegmentEnd
		if ei != ej {
			return ei
		}
		if !entries[i].Start.Equal(entries[j].Start) {
			return entries[i].Start.Before(entries[j].Start)
		}
		return entries[i].FilingID < entries[j].FilingID
	})
}
