package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"teamsched/config"
	"teamsched/database"
	"teamsched/middleware"
	"teamsched/models"
	"teamsched/scheduling"
	"teamsched/store"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	handler http.Handler
	repo    *store.Store
	admin   string
	ana     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.Nop()
	db, err := database.OpenSQLite(":memory:", log)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := database.SeedAdmin(db, "admin", "admin-password", log); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	repo, err := store.New(db, store.Options{CacheSize: 16, Location: time.UTC, Log: log})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte("ana-password"), bcrypt.MinCost)
	if err := repo.CreateUser(context.Background(), &models.User{
		Username: "ana", FullName: "Ana Cruz", PasswordHash: string(hash), Role: models.RoleEmployee,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	now := func() time.Time { return time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC) }
	validator := scheduling.NewConflictValidator(time.UTC)
	filings := scheduling.NewFilingService(repo, validator, scheduling.FilingOptions{
		Mode: config.ApprovalReview, Log: log, Now: now,
	})
	wfh := scheduling.NewWfhService(repo, validator, log)
	calendar := scheduling.NewCalendarService(repo, time.UTC, now)
	parser := scheduling.NewInputParser(time.UTC, 10)
	guard := middleware.NewAuth("test-secret", time.Hour, repo)

	srv := &testServer{repo: repo}
	srv.handler = NewRouter(Deps{
		Auth:     NewAuthHandler(repo, guard, calendar, log),
		Overtime: NewOvertimeHandler(filings, calendar, parser, now),
		Schedule: NewScheduleHandler(wfh, calendar, parser, now),
		Guard:    guard,
		Log:      log,
	})
	srv.admin = srv.login(t, "admin", "admin-password")
	srv.ana = srv.login(t, "ana", "ana-password")
	return srv
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": username, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func filingBody(startDate, startTime, endDate, endTime string) map[string]string {
	return map[string]string{
		"start_date": startDate, "start_time": startTime,
		"end_date": endDate, "end_time": endTime,
		"reason": "quarter close reconciliation",
	}
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "ana", "password": "wrong"})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = srv.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "nobody", "password": "x"})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = srv.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "ana", "password": "ana-password"})
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Header().Get("Set-Cookie"), middleware.TokenCookie+"=") {
		t.Fatalf("expected token cookie, got %q", rec.Header().Get("Set-Cookie"))
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}

	rec = srv.do(t, http.MethodGet, "/api/me", srv.ana, nil)
	expectStatus(t, rec, http.StatusOK)
	var me models.User
	decode(t, rec, &me)
	if me.Username != "ana" {
		t.Fatalf("expected ana, got %q", me.Username)
	}

	expectStatus(t, srv.do(t, http.MethodGet, "/api/me", "", nil), http.StatusUnauthorized)
}

func TestOvertimeReviewFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/overtime", srv.ana, filingBody("2024-03-08", "18:00", "2024-03-08", "22:00"))
	expectStatus(t, rec, http.StatusCreated)
	var filing models.OvertimeFiling
	decode(t, rec, &filing)
	if filing.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", filing.Status)
	}

	// Overlapping submission is still allowed while the first is pending.
	expectStatus(t, srv.do(t, http.MethodPost, "/api/overtime", srv.ana, filingBody("2024-03-08", "20:00", "2024-03-08", "23:00")), http.StatusCreated)

	expectStatus(t, srv.do(t, http.MethodGet, "/api/admin/overtime/pending", srv.ana, nil), http.StatusForbidden)

	rec = srv.do(t, http.MethodGet, "/api/admin/overtime/pending", srv.admin, nil)
	expectStatus(t, rec, http.StatusOK)
	var pending []models.OvertimeFiling
	decode(t, rec, &pending)
	if len(pending) != 2 || pending[0].ID != filing.ID {
		t.Fatalf("expected two pending filings with the first one first, got %+v", pending)
	}
	if pending[0].User == nil || pending[0].User.FullName != "Ana Cruz" {
		t.Fatalf("expected employee name in pending list")
	}

	rec = srv.do(t, http.MethodPost, "/api/admin/overtime/"+filing.ID+"/approve", srv.admin, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &filing)
	if filing.Status != models.StatusApproved || filing.ReviewerID == nil {
		t.Fatalf("expected approved filing with reviewer, got %+v", filing)
	}

	rec = srv.do(t, http.MethodPost, "/api/admin/overtime/"+filing.ID+"/decline", srv.admin, nil)
	expectStatus(t, rec, http.StatusConflict)

	// The second pending filing now overlaps an approved one.
	rec = srv.do(t, http.MethodPost, "/api/admin/overtime/"+pending[1].ID+"/approve", srv.admin, nil)
	expectStatus(t, rec, http.StatusConflict)
	var body errorBody
	decode(t, rec, &body)
	if body.Kind != "conflict" {
		t.Fatalf("expected conflict kind, got %q", body.Kind)
	}

	rec = srv.do(t, http.MethodGet, "/api/overtime/hours?from=2024-03-01&to=2024-03-31", srv.ana, nil)
	expectStatus(t, rec, http.StatusOK)
	var hours struct {
		RegularDayHours int `json:"regular_day_hours"`
		RestDayHours    int `json:"rest_day_hours"`
		TotalHours      int `json:"total_hours"`
	}
	decode(t, rec, &hours)
	if hours.RegularDayHours != 4 || hours.RestDayHours != 0 || hours.TotalHours != 4 {
		t.Fatalf("unexpected hours %+v", hours)
	}
}

func TestSubmitValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/overtime", srv.ana, filingBody("2024-03-08", "22:00", "2024-03-08", "18:00"))
	expectStatus(t, rec, http.StatusBadRequest)
	var body errorBody
	decode(t, rec, &body)
	if body.Kind != "validation" || body.Fields["end_time"] == "" {
		t.Fatalf("expected end_time field error, got %+v", body)
	}

	rec = srv.do(t, http.MethodPost, "/api/overtime", srv.ana, map[string]string{"start_date": "yesterday"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = srv.do(t, http.MethodPost, "/api/overtime", srv.ana, map[string]any{"unknown": true})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestEditAndWithdraw(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/overtime", srv.ana, filingBody("2024-03-08", "18:00", "2024-03-08", "22:00"))
	expectStatus(t, rec, http.StatusCreated)
	var filing models.OvertimeFiling
	decode(t, rec, &filing)

	edit := map[string]any{
		"start_date": "2024-03-08", "start_time": "19:00",
		"end_date": "2024-03-08", "end_time": "23:00",
		"reason": "quarter close reconciliation", "version": filing.Version,
	}
	rec = srv.do(t, http.MethodPut, "/api/overtime/"+filing.ID, srv.ana, edit)
	expectStatus(t, rec, http.StatusOK)

	// Reusing the stale version fails.
	rec = srv.do(t, http.MethodPut, "/api/overtime/"+filing.ID, srv.ana, edit)
	expectStatus(t, rec, http.StatusConflict)

	expectStatus(t, srv.do(t, http.MethodDelete, "/api/overtime/"+filing.ID, srv.ana, nil), http.StatusNoContent)
	expectStatus(t, srv.do(t, http.MethodGet, "/api/overtime/"+filing.ID, srv.ana, nil), http.StatusNotFound)
}

func TestScheduleAndCalendar(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/schedule", srv.ana, nil)
	expectStatus(t, rec, http.StatusOK)
	var sched scheduleResponse
	decode(t, rec, &sched)
	if len(sched.DaysOfWeek) != 0 || sched.Label != "Not set" {
		t.Fatalf("expected empty schedule, got %+v", sched)
	}

	rec = srv.do(t, http.MethodPut, "/api/schedule", srv.ana, map[string][]int{"days_of_week": {3, 1, 3}})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &sched)
	if len(sched.DaysOfWeek) != 2 || sched.DaysOfWeek[0] != 1 || sched.Label != "Monday, Wednesday" {
		t.Fatalf("unexpected schedule %+v", sched)
	}

	expectStatus(t, srv.do(t, http.MethodPut, "/api/schedule", srv.ana, map[string][]int{"days_of_week": {7}}), http.StatusBadRequest)

	rec = srv.do(t, http.MethodPost, "/api/one-off-wfh", srv.ana, map[string]string{"date": "2024-03-07", "reason": "plumber"})
	expectStatus(t, rec, http.StatusCreated)
	expectStatus(t, srv.do(t, http.MethodPost, "/api/one-off-wfh", srv.ana, map[string]string{"date": "2024-03-07"}), http.StatusConflict)
	expectStatus(t, srv.do(t, http.MethodPost, "/api/one-off-wfh", srv.ana, map[string]string{"date": "2024-03-09"}), http.StatusBadRequest)

	rec = srv.do(t, http.MethodGet, "/api/calendar?month=2024-03", srv.ana, nil)
	expectStatus(t, rec, http.StatusOK)
	var view scheduling.MonthView
	decode(t, rec, &view)
	tags := map[string]scheduling.Tag{}
	for _, d := range view.Days {
		tags[d.Date] = d.Tag
	}
	if tags["2024-03-04"] != scheduling.TagWfh {
		t.Fatalf("expected Monday to be wfh, got %q", tags["2024-03-04"])
	}
	if tags["2024-03-07"] != scheduling.TagOneOffWfh {
		t.Fatalf("expected one-off on the 7th, got %q", tags["2024-03-07"])
	}

	expectStatus(t, srv.do(t, http.MethodGet, "/api/calendar?month=March", srv.ana, nil), http.StatusBadRequest)
	expectStatus(t, srv.do(t, http.MethodGet, "/api/admin/calendar?month=2024-03", srv.ana, nil), http.StatusForbidden)

	rec = srv.do(t, http.MethodGet, "/api/admin/calendar?month=2024-03", srv.admin, nil)
	expectStatus(t, rec, http.StatusOK)
	var team scheduling.TeamMonthView
	decode(t, rec, &team)
	for _, d := range team.Days {
		if d.Date == "2024-03-07" && (len(d.Names) != 1 || d.Names[0] != "Ana Cruz") {
			t.Fatalf("expected Ana on the 7th, got %+v", d)
		}
	}
}

func TestAdminUsersAndProfile(t *testing.T) {
	srv := newTestServer(t)

	newUser := map[string]string{"username": "ben", "password": "ben-password", "full_name": "Ben Ortiz"}
	expectStatus(t, srv.do(t, http.MethodPost, "/api/admin/users", srv.ana, newUser), http.StatusForbidden)

	rec := srv.do(t, http.MethodPost, "/api/admin/users", srv.admin, newUser)
	expectStatus(t, rec, http.StatusCreated)
	var ben models.User
	decode(t, rec, &ben)
	if ben.Role != models.RoleEmployee {
		t.Fatalf("expected default employee role, got %q", ben.Role)
	}

	expectStatus(t, srv.do(t, http.MethodPost, "/api/admin/users", srv.admin, newUser), http.StatusConflict)

	rec = srv.do(t, http.MethodPost, "/api/admin/users", srv.admin, map[string]string{"username": "x", "password": "short"})
	expectStatus(t, rec, http.StatusBadRequest)
	var body errorBody
	decode(t, rec, &body)
	if body.Fields["username"] == "" || body.Fields["password"] == "" || body.Fields["full_name"] == "" {
		t.Fatalf("expected field errors, got %+v", body.Fields)
	}

	rec = srv.do(t, http.MethodGet, "/api/admin/users", srv.admin, nil)
	expectStatus(t, rec, http.StatusOK)
	var users []models.UserSummary
	decode(t, rec, &users)
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}

	rec = srv.do(t, http.MethodGet, "/api/admin/users/"+ben.ID+"/profile", srv.admin, nil)
	expectStatus(t, rec, http.StatusOK)
	var profile scheduling.Profile
	decode(t, rec, &profile)
	if profile.User == nil || profile.User.ID != ben.ID || profile.WfhDayNames != "Not set" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	expectStatus(t, srv.do(t, http.MethodGet, "/api/admin/users/missing/profile", srv.admin, nil), http.StatusNotFound)
}

func TestHistoryAndExport(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/overtime", srv.ana, filingBody("2024-03-09", "10:00", "2024-03-09", "13:30"))
	expectStatus(t, rec, http.StatusCreated)
	var filing models.OvertimeFiling
	decode(t, rec, &filing)
	expectStatus(t, srv.do(t, http.MethodPost, "/api/admin/overtime/"+filing.ID+"/approve", srv.admin, nil), http.StatusOK)

	rec = srv.do(t, http.MethodGet, "/api/admin/overtime/history?q=ana&sort=status&dir=asc", srv.admin, nil)
	expectStatus(t, rec, http.StatusOK)
	var history []models.OvertimeFiling
	decode(t, rec, &history)
	if len(history) != 1 || history[0].Reviewer == nil {
		t.Fatalf("expected one reviewed filing, got %+v", history)
	}
	expectStatus(t, srv.do(t, http.MethodGet, "/api/admin/overtime/history?sort=reason", srv.admin, nil), http.StatusBadRequest)

	expectStatus(t, srv.do(t, http.MethodGet, "/api/admin/export/csv?month=13&year=2024", srv.admin, nil), http.StatusBadRequest)

	rec = srv.do(t, http.MethodGet, "/api/admin/export/csv?month=3&year=2024", srv.admin, nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header and one row, got %d records", len(records))
	}
	row := records[1]
	// Saturday overtime with no WFH schedule is rest-day time, floored to whole hours.
	if row[0] != "Ana Cruz" || row[1] != "2024-03-09 10:00" || row[3] != "0" || row[4] != "3" || row[6] != "Administrator" {
		t.Fatalf("unexpected csv row %v", row)
	}
}

func TestListAppliesSingleDateBound(t *testing.T) {
	srv := newTestServer(t)

	expectStatus(t, srv.do(t, http.MethodPost, "/api/overtime", srv.ana, filingBody("2024-03-04", "18:00", "2024-03-04", "20:00")), http.StatusCreated)
	expectStatus(t, srv.do(t, http.MethodPost, "/api/overtime", srv.ana, filingBody("2024-03-12", "18:00", "2024-03-12", "20:00")), http.StatusCreated)

	tests := []struct {
		query string
		want  string
	}{
		{"?from=2024-03-10", "2024-03-12"},
		{"?to=2024-03-05", "2024-03-04"},
	}
	for _, tt := range tests {
		rec := srv.do(t, http.MethodGet, "/api/overtime"+tt.query, srv.ana, nil)
		expectStatus(t, rec, http.StatusOK)
		var filings []models.OvertimeFiling
		decode(t, rec, &filings)
		if len(filings) != 1 || filings[0].StartTime.UTC().Format("2006-01-02") != tt.want {
			t.Fatalf("%s: expected only the filing on %s, got %+v", tt.query, tt.want, filings)
		}
	}
}
