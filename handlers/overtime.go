package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"teamsched/apperr"
	"teamsched/models"
	"teamsched/scheduling"

	"github.com/go-chi/chi/v5"
)

type OvertimeHandler struct {
	filings  *scheduling.FilingService
	calendar *scheduling.CalendarService
	parser   *scheduling.InputParser
	now      func() time.Time
}

func NewOvertimeHandler(filings *scheduling.FilingService, calendar *scheduling.CalendarService, parser *scheduling.InputParser, now func() time.Time) *OvertimeHandler {
	if now == nil {
		now = time.Now
	}
	return &OvertimeHandler{filings: filings, calendar: calendar, parser: parser, now: now}
}

func (h *OvertimeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var in scheduling.FilingInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	parsed, err := h.parser.ParseFiling(in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	filing, err := h.filings.Submit(r.Context(), actor, in.UserID, parsed)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, filing)
}

func (h *OvertimeHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var in scheduling.EditInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	parsed, version, err := h.parser.ParseEdit(in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	filing, err := h.filings.Edit(r.Context(), actor, chi.URLParam(r, "id"), parsed, version)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, filing)
}

func (h *OvertimeHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	if err := h.filings.Withdraw(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OvertimeHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	filing, err := h.filings.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, filing)
}

// List returns the caller's filings, optionally limited to the civil dates
// from..to and a comma separated status list.
func (h *OvertimeHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	lq := scheduling.ListQuery{UserID: q.Get("user_id"), Statuses: splitStatuses(q.Get("status"))}

	loc := h.parser.Location()
	if raw := q.Get("from"); raw != "" {
		from, err := h.parser.ParseDate("from", raw)
		if err != nil {
			respondError(w, r, err)
			return
		}
		lq.From = models.DayStart(from, loc)
	}
	if raw := q.Get("to"); raw != "" {
		to, err := h.parser.ParseDate("to", raw)
		if err != nil {
			respondError(w, r, err)
			return
		}
		lq.To = models.DayStart(to, loc).AddDate(0, 0, 1)
	}

	filings, err := h.filings.List(r.Context(), actor, lq)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, filings)
}

// Hours defaults to the current month when from or to is missing.
func (h *OvertimeHandler) Hours(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, to := monthDays(models.MonthOf(h.now().In(h.parser.Location())))
	var err error
	if raw := q.Get("from"); raw != "" {
		if from, err = h.parser.ParseDate("from", raw); err != nil {
			respondError(w, r, err)
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if to, err = h.parser.ParseDate("to", raw); err != nil {
			respondError(w, r, err)
			return
		}
	}

	summary, err := h.calendar.Hours(r.Context(), actor, q.Get("user_id"), from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		scheduling.HoursSummary
		TotalHours int `json:"total_hours"`
	}{summary, summary.TotalHours()})
}

func (h *OvertimeHandler) Pending(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	filings, err := h.filings.ListPending(r.Context(), actor)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, filings)
}

func (h *OvertimeHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, models.DecisionApprove)
}

func (h *OvertimeHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, models.DecisionDecline)
}

func (h *OvertimeHandler) review(w http.ResponseWriter, r *http.Request, decision models.Decision) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	filing, err := h.filings.Review(r.Context(), actor, chi.URLParam(r, "id"), decision)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, filing)
}

func (h *OvertimeHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filings, err := h.filings.History(r.Context(), actor, scheduling.HistoryQuery{
		Search: q.Get("q"),
		Sort:   q.Get("sort"),
		Order:  q.Get("dir"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, filings)
}

func (h *OvertimeHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		respondError(w, r, apperr.FieldError("month", "Invalid month"))
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 || year > 2100 {
		respondError(w, r, apperr.FieldError("year", "Invalid year"))
		return
	}

	rows, err := h.calendar.Export(r.Context(), actor, models.Month{Year: year, Month: time.Month(month)})
	if err != nil {
		respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("overtime_%d_%02d.csv", year, month)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	writer.Write([]string{"Employee", "Start", "End", "Regular Day Hours", "Rest Day Hours", "Reason", "Reviewer"})

	loc := h.parser.Location()
	for _, row := range rows {
		writer.Write([]string{
			row.Employee,
			row.Filing.StartTime.In(loc).Format("2006-01-02 15:04"),
			row.Filing.EndTime.In(loc).Format("2006-01-02 15:04"),
			strconv.Itoa(row.RegularDayHours),
			strconv.Itoa(row.RestDayHours),
			row.Filing.Reason,
			row.Reviewer,
		})
	}
}
