package scheduling

import (
	"context"
	"time"

	"teamsched/apperr"
	"teamsched/models"
	"teamsched/store"
)

// CalendarService builds the derived views: month grids, hour totals,
// profiles and the monthly export.
type CalendarService struct {
	repo store.Repository
	loc  *time.Location
	now  func() time.Time
}

func NewCalendarService(repo store.Repository, loc *time.Location, now func() time.Time) *CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &CalendarService{repo: repo, loc: loc, now: now}
}

func (s *CalendarService) Month(ctx context.Context, actor models.Actor, userID string, month models.Month) (MonthView, error) {
	if userID == "" {
		userID = actor.ActorID()
	}
	if !models.CanActFor(actor, userID) {
		return MonthView{}, apperr.ErrForbidden
	}
	data, err := s.repo.MonthData(ctx, userID, month)
	if err != nil {
		return MonthView{}, err
	}
	return Classify(month, data, s.loc, s.now()), nil
}

func (s *CalendarService) TeamMonth(ctx context.Context, actor models.Actor, month models.Month) (TeamMonthView, error) {
	if !models.IsAdministrator(actor) {
		return TeamMonthView{}, apperr.ErrForbidden
	}
	data, err := s.repo.TeamMonthData(ctx, month)
	if err != nil {
		return TeamMonthView{}, err
	}
	return ClassifyTeam(month, data, s.loc, s.now()), nil
}

// Hours aggregates approved overtime for the civil dates from..to inclusive.
func (s *CalendarService) Hours(ctx context.Context, actor models.Actor, userID string, from, to time.Time) (HoursSummary, error) {
	if userID == "" {
		userID = actor.ActorID()
	}
	if !models.CanActFor(actor, userID) {
		return HoursSummary{}, apperr.ErrForbidden
	}
	if to.Before(from) {
		return HoursSummary{}, apperr.FieldError("to", "End date must not be before start date.")
	}

	start := models.DayStart(from, s.loc)
	end := models.DayStart(to, s.loc).AddDate(0, 0, 1)

	filings, err := s.repo.ListApprovedFilings(ctx, userID, start, end)
	if err != nil {
		return HoursSummary{}, err
	}
	schedule, err := s.repo.GetWfhSchedule(ctx, userID)
	if err != nil {
		return HoursSummary{}, err
	}
	return AggregateHours(filings, schedule, start, end, s.loc), nil
}

type Profile struct {
	User        *models.User            `json:"user"`
	WfhDays     models.Weekdays         `json:"wfh_days"`
	WfhDayNames string                  `json:"wfh_day_names"`
	Overtime    []models.OvertimeFiling `json:"overtime"`
}

func (s *CalendarService) Profile(ctx context.Context, actor models.Actor, userID string) (*Profile, error) {
	if userID == "" {
		userID = actor.ActorID()
	}
	if !models.CanActFor(actor, userID) {
		return nil, apperr.ErrForbidden
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	days, err := s.repo.GetWfhSchedule(ctx, userID)
	if err != nil {
		return nil, err
	}
	filings, err := s.repo.ListFilings(ctx, models.FilingQuery{UserID: userID, WithUsers: true, Descending: true})
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, WfhDays: days, WfhDayNames: days.Label(), Overtime: filings}, nil
}

type ExportRow struct {
	Filing          models.OvertimeFiling
	Employee        string
	Reviewer        string
	RegularDayHours int
	RestDayHours    int
}

// Export lists approved filings starting in month with their hour split.
func (s *CalendarService) Export(ctx context.Context, actor models.Actor, month models.Month) ([]ExportRow, error) {
	if !models.IsAdministrator(actor) {
		return nil, apperr.ErrForbidden
	}
	from, to := month.Bounds(s.loc)
	filings, err := s.repo.ListFilings(ctx, models.FilingQuery{
		Statuses:     []models.FilingStatus{models.StatusApproved},
		StartsFrom:   from,
		StartsBefore: to,
		WithUsers:    true,
	})
	if err != nil {
		return nil, err
	}
	schedules, err := s.repo.ListWfhSchedules(ctx)
	if err != nil {
		return nil, err
	}
	byUser := make(map[string]models.Weekdays, len(schedules))
	for _, sc := range schedules {
		byUser[sc.UserID] = sc.DaysOfWeek
	}

	rows := make([]ExportRow, 0, len(filings))
	for _, f := range filings {
		sum := AggregateHours([]models.OvertimeFiling{f}, byUser[f.UserID], f.StartTime, f.EndTime, s.loc)
		row := ExportRow{
			Filing:          f,
			Employee:        displayName(f.User, f.UserID),
			RegularDayHours: sum.RegularDayHours,
			RestDayHours:    sum.RestDayHours,
		}
		if f.Reviewer != nil {
			row.Reviewer = f.Reviewer.DisplayName()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *CalendarService) ListUsers(ctx context.Context, actor models.Actor) ([]models.UserSummary, error) {
	if !models.IsAdministrator(actor) {
		return nil, apperr.ErrForbidden
	}
	return s.repo.ListAllUsers(ctx)
}
