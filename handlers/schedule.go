package handlers

import (
	"net/http"
	"time"

	"teamsched/scheduling"

	"github.com/go-chi/chi/v5"
)

// ScheduleHandler serves WFH schedules, one-off days, calendars and profiles.
type ScheduleHandler struct {
	wfh      *scheduling.WfhService
	calendar *scheduling.CalendarService
	parser   *scheduling.InputParser
	now      func() time.Time
}

func NewScheduleHandler(wfh *scheduling.WfhService, calendar *scheduling.CalendarService, parser *scheduling.InputParser, now func() time.Time) *ScheduleHandler {
	if now == nil {
		now = time.Now
	}
	return &ScheduleHandler{wfh: wfh, calendar: calendar, parser: parser, now: now}
}

type scheduleResponse struct {
	UserID     string  `json:"user_id"`
	DaysOfWeek []int64 `json:"days_of_week"`
	Label      string  `json:"label"`
}

func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = actor.ActorID()
	}
	days, err := h.wfh.GetSchedule(r.Context(), actor, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponse{UserID: userID, DaysOfWeek: nonNil(days), Label: days.Label()})
}

func (h *ScheduleHandler) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var in scheduling.ScheduleInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	days, err := h.parser.ParseSchedule(in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = actor.ActorID()
	}
	saved, err := h.wfh.SaveSchedule(r.Context(), actor, userID, days)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponse{UserID: userID, DaysOfWeek: nonNil(saved), Label: saved.Label()})
}

func (h *ScheduleHandler) SubmitOneOff(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var in scheduling.OneOffInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	date, reason, err := h.parser.ParseOneOff(in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	day, err := h.wfh.SubmitOneOff(r.Context(), actor, in.UserID, date, reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, day)
}

// Calendar classifies every day of ?month=YYYY-MM, defaulting to the current month.
func (h *ScheduleHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	month, err := h.parser.ParseMonth("month", r.URL.Query().Get("month"), h.now())
	if err != nil {
		respondError(w, r, err)
		return
	}
	view, err := h.calendar.Month(r.Context(), actor, r.URL.Query().Get("user_id"), month)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *ScheduleHandler) TeamCalendar(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	month, err := h.parser.ParseMonth("month", r.URL.Query().Get("month"), h.now())
	if err != nil {
		respondError(w, r, err)
		return
	}
	view, err := h.calendar.TeamMonth(r.Context(), actor, month)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *ScheduleHandler) Profile(w http.ResponseWriter, r *http.Request) {
	h.profile(w, r, "")
}

func (h *ScheduleHandler) UserProfile(w http.ResponseWriter, r *http.Request) {
	h.profile(w, r, chi.URLParam(r, "id"))
}

func (h *ScheduleHandler) profile(w http.ResponseWriter, r *http.Request, userID string) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	profile, err := h.calendar.Profile(r.Context(), actor, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func nonNil(days []int64) []int64 {
	if days == nil {
		return []int64{}
	}
	return days
}
