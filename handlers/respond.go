package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"teamsched/apperr"
	"teamsched/middleware"
	"teamsched/models"

	"github.com/rs/zerolog/hlog"
)

type errorBody struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// respondError maps the error taxonomy onto HTTP statuses. Persistence and
// unknown errors are logged and reported without their cause.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.Kind(err)
	body := errorBody{Error: err.Error(), Kind: kind}
	status := http.StatusInternalServerError

	switch kind {
	case "validation":
		status = http.StatusBadRequest
		var ve *apperr.ValidationError
		if errors.As(err, &ve) {
			body.Error = ve.Message
			body.Fields = ve.Fields
		}
	case "conflict":
		status = http.StatusConflict
	case "not_found":
		status = http.StatusNotFound
	case "forbidden":
		status = http.StatusForbidden
		body.Error = "You are not allowed to do that."
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		body.Error = "Internal server error"
	}
	respondJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("Invalid JSON body: " + err.Error())
	}
	return nil
}

// currentActor fails only when a route was mounted without the auth middleware.
func currentActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	return actor, true
}

func splitStatuses(raw string) []models.FilingStatus {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []models.FilingStatus
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, models.FilingStatus(strings.ToLower(s)))
		}
	}
	return out
}

// monthDays returns the first and last civil date of m.
func monthDays(m models.Month) (time.Time, time.Time) {
	first := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}
