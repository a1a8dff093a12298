package scheduling

import (
	"sort"
	"time"

	"teamsched/models"
)

type TeamTag string

const (
	TeamTagNone      TeamTag = "none"
	TeamTagWfh       TeamTag = "wfh"
	TeamTagOneOffWfh TeamTag = "oneOffWfh"
	TeamTagMixed     TeamTag = "mixed"
)

type TeamDay struct {
	Date       string   `json:"date"`
	Weekday    int      `json:"weekday"`
	InMonth    bool     `json:"in_month"`
	IsWeekend  bool     `json:"is_weekend"`
	IsToday    bool     `json:"is_today"`
	RegularWfh []string `json:"regular_wfh"`
	OneOffWfh  []string `json:"one_off_wfh"`
	Names      []string `json:"names"`
	Tag        TeamTag  `json:"tag"`
}

type TeamMonthView struct {
	Month string    `json:"month"`
	Days  []TeamDay `json:"days"`
}

func displayName(u *models.User, fallback string) string {
	if u == nil {
		return fallback
	}
	return u.DisplayName()
}

// ClassifyTeam groups every employee's WFH days by date. A day is mixed when
// it has at least one regular and at least one one-off entry, even if they
// belong to the same person; Names lists each person once.
func ClassifyTeam(month models.Month, data *models.TeamMonthData, loc *time.Location, now time.Time) TeamMonthView {
	oneOffs := make(map[string][]string)
	for _, d := range data.OneOffs {
		key := models.DateKey(d.Date)
		oneOffs[key] = append(oneOffs[key], displayName(d.User, d.UserID))
	}

	today := models.DateKey(models.CivilDate(now, loc))
	gridStart, gridEnd := month.Grid(loc)

	view := TeamMonthView{Month: month.String()}
	for d := gridStart; !d.After(gridEnd); d = d.AddDate(0, 0, 1) {
		key := models.DateKey(d)
		weekday := d.Weekday()
		day := TeamDay{
			Date:       key,
			Weekday:    int(weekday),
			InMonth:    d.Month() == month.Month && d.Year() == month.Year,
			IsWeekend:  models.IsWeekend(weekday),
			IsToday:    key == today,
			RegularWfh: []string{},
			OneOffWfh:  []string{},
			Names:      []string{},
			Tag:        TeamTagNone,
		}

		if !day.IsWeekend {
			for _, s := range data.Schedules {
				if s.DaysOfWeek.Contains(weekday) {
					day.RegularWfh = append(day.RegularWfh, displayName(s.User, s.UserID))
				}
			}
			day.OneOffWfh = append(day.OneOffWfh, oneOffs[key]...)
			sort.Strings(day.RegularWfh)
			sort.Strings(day.OneOffWfh)
			day.Names = mergeNames(day.RegularWfh, day.OneOffWfh)

			switch {
			case len(day.RegularWfh) > 0 && len(day.OneOffWfh) > 0:
				day.Tag = TeamTagMixed
			case len(day.RegularWfh) > 0:
				day.Tag = TeamTagWfh
			case len(day.OneOffWfh) > 0:
				day.Tag = TeamTagOneOffWfh
			}
		}
		view.Days = append(view.Days, day)
	}
	return view
}

func mergeNames(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, list := range lists {
		for _, name := range list {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}
