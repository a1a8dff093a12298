package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"teamsched/apperr"
	"teamsched/database"
	"teamsched/models"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	s, err := New(db, Options{CacheSize: 16, Location: time.UTC, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func createUser(t *testing.T, s *Store, username, fullName string) *models.User {
	t.Helper()
	u := &models.User{Username: username, FullName: fullName, PasswordHash: "x", Role: models.RoleEmployee}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func at(day, hour int) time.Time {
	return time.Date(2024, time.March, day, hour, 0, 0, 0, time.UTC)
}

func insertFiling(t *testing.T, s *Store, userID string, start, end time.Time, status models.FilingStatus) *models.OvertimeFiling {
	t.Helper()
	f := &models.OvertimeFiling{UserID: userID, StartTime: start, EndTime: end, Reason: "release support", Status: status}
	if err := s.InsertFiling(context.Background(), f); err != nil {
		t.Fatalf("insert filing: %v", err)
	}
	return f
}

func TestWfhScheduleUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ana", "Ana Cruz")

	days, err := s.GetWfhSchedule(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetWfhSchedule: %v", err)
	}
	if len(days) != 0 {
		t.Fatalf("expected empty schedule, got %v", days)
	}

	if err := s.UpsertWfhSchedule(ctx, u.ID, models.Weekdays{1, 3}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := s.UpsertWfhSchedule(ctx, u.ID, models.Weekdays{2}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	days, err = s.GetWfhSchedule(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetWfhSchedule: %v", err)
	}
	if len(days) != 1 || days[0] != 2 {
		t.Fatalf("expected schedule to be replaced with [2], got %v", days)
	}

	schedules, err := s.ListWfhSchedules(ctx)
	if err != nil {
		t.Fatalf("ListWfhSchedules: %v", err)
	}
	if len(schedules) != 1 || schedules[0].User == nil || schedules[0].User.FullName != "Ana Cruz" {
		t.Fatalf("expected one schedule with user preloaded, got %+v", schedules)
	}
}

func TestInsertOneOffWfhDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ana", "Ana Cruz")
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	if err := s.InsertOneOffWfh(ctx, &models.OneOffWfhDay{UserID: u.ID, Date: date}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := s.InsertOneOffWfh(ctx, &models.OneOffWfhDay{UserID: u.ID, Date: date, Reason: "again"})
	if !errors.Is(err, apperr.ErrDuplicateOneOff) {
		t.Fatalf("expected ErrDuplicateOneOff, got %v", err)
	}
	var ce *apperr.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %T", err)
	}

	days, err := s.ListOneOffWfh(ctx, "", date, date.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListOneOffWfh: %v", err)
	}
	if len(days) != 1 || days[0].User == nil || days[0].User.FullName != "Ana Cruz" {
		t.Fatalf("expected one day with owner preloaded, got %+v", days)
	}
	if models.DateKey(days[0].Date) != "2024-03-05" {
		t.Fatalf("unexpected stored date %v", days[0].Date)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	createUser(t, s, "ana", "Ana Cruz")

	err := s.CreateUser(context.Background(), &models.User{Username: "ana", FullName: "Other", PasswordHash: "x", Role: models.RoleEmployee})
	if !errors.Is(err, apperr.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestListApprovedFilingsUsesHalfOpenOverlap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ana", "Ana Cruz")

	insertFiling(t, s, u.ID, at(4, 18), at(4, 20), models.StatusApproved)
	insertFiling(t, s, u.ID, at(4, 20), at(4, 22), models.StatusPending)
	insertFiling(t, s, u.ID, at(5, 8), at(5, 10), models.StatusApproved)

	got, err := s.ListApprovedFilings(ctx, u.ID, at(4, 20), at(5, 9))
	if err != nil {
		t.Fatalf("ListApprovedFilings: %v", err)
	}
	if len(got) != 1 || !got[0].StartTime.Equal(at(5, 8)) {
		t.Fatalf("expected only the 5th's filing, got %+v", got)
	}

	got, err = s.ListApprovedFilings(ctx, u.ID, at(4, 19), at(4, 21))
	if err != nil {
		t.Fatalf("ListApprovedFilings: %v", err)
	}
	if len(got) != 1 || !got[0].StartTime.Equal(at(4, 18)) {
		t.Fatalf("expected the 18:00 filing, got %+v", got)
	}
}

func TestListFilingsFiltersAndSorts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ana := createUser(t, s, "ana", "Ana Cruz")
	ben := createUser(t, s, "ben", "Ben Reyes")

	insertFiling(t, s, ana.ID, at(4, 18), at(4, 20), models.StatusPending)
	insertFiling(t, s, ben.ID, at(6, 18), at(6, 20), models.StatusApproved)
	insertFiling(t, s, ana.ID, at(8, 18), at(8, 20), models.StatusDeclined)

	got, err := s.ListFilings(ctx, models.FilingQuery{NameContains: "ANA", WithUsers: true, Descending: true})
	if err != nil {
		t.Fatalf("ListFilings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two filings for Ana, got %d", len(got))
	}
	if !got[0].StartTime.Equal(at(8, 18)) || got[0].User == nil || got[0].User.FullName != "Ana Cruz" {
		t.Fatalf("expected newest first with user preloaded, got %+v", got[0])
	}

	got, err = s.ListFilings(ctx, models.FilingQuery{OrderBy: "status"})
	if err != nil {
		t.Fatalf("ListFilings by status: %v", err)
	}
	want := []models.FilingStatus{models.StatusApproved, models.StatusDeclined, models.StatusPending}
	for i, f := range got {
		if f.Status != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], f.Status)
		}
	}

	if _, err := s.ListFilings(ctx, models.FilingQuery{OrderBy: "reason; DROP TABLE users"}); err == nil {
		t.Fatal("expected unsupported sort field to be rejected")
	}
}

func TestListFilingsSingleOverlapBound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ana := createUser(t, s, "ana", "Ana Cruz")

	insertFiling(t, s, ana.ID, at(4, 18), at(4, 20), models.StatusPending)
	insertFiling(t, s, ana.ID, at(9, 23), at(10, 2), models.StatusApproved)
	insertFiling(t, s, ana.ID, at(12, 18), at(12, 20), models.StatusPending)

	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{"from only", at(10, 0), time.Time{}, 2},
		{"to only", time.Time{}, at(9, 23), 1},
		{"both", at(10, 0), at(12, 0), 1},
		{"neither", time.Time{}, time.Time{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListFilings(ctx, models.FilingQuery{UserID: ana.ID, OverlapsFrom: tt.from, OverlapsTo: tt.to})
			if err != nil {
				t.Fatalf("ListFilings: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d filings, got %d", tt.want, len(got))
			}
		})
	}
}

func TestUpdateFilingStatusOnlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ana", "Ana Cruz")
	admin := createUser(t, s, "boss", "Boss")
	f := insertFiling(t, s, u.ID, at(4, 18), at(4, 20), models.StatusPending)

	now := at(5, 9)
	if err := s.UpdateFilingStatus(ctx, f.ID, models.StatusApproved, admin.ID, now); err != nil {
		t.Fatalf("first review: %v", err)
	}
	err := s.UpdateFilingStatus(ctx, f.ID, models.StatusDeclined, admin.ID, now)
	if !errors.Is(err, apperr.ErrAlreadyReviewed) {
		t.Fatalf("expected ErrAlreadyReviewed, got %v", err)
	}

	got, err := s.GetFiling(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetFiling: %v", err)
	}
	if got.Status != models.StatusApproved || got.ReviewerID == nil || *got.ReviewerID != admin.ID {
		t.Fatalf("unexpected filing after review: %+v", got)
	}
	if got.ReviewedAt == nil || !got.ReviewedAt.Equal(now) {
		t.Fatalf("expected reviewed_at %v, got %v", now, got.ReviewedAt)
	}
	if got.Reviewer == nil || got.Reviewer.FullName != "Boss" {
		t.Fatalf("expected reviewer preloaded, got %+v", got.Reviewer)
	}

	err = s.UpdateFilingStatus(ctx, "missing", models.StatusApproved, admin.ID, now)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateFilingChecksVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ana", "Ana Cruz")
	f := insertFiling(t, s, u.ID, at(4, 18), at(4, 20), models.StatusPending)

	edit := *f
	edit.StartTime, edit.EndTime = at(4, 19), at(4, 21)
	if err := s.UpdateFiling(ctx, &edit, f.Version); err != nil {
		t.Fatalf("UpdateFiling: %v", err)
	}
	if edit.Version != f.Version+1 {
		t.Fatalf("expected version %d, got %d", f.Version+1, edit.Version)
	}

	stale := *f
	stale.Reason = "stale write from another tab"
	err := s.UpdateFiling(ctx, &stale, f.Version)
	if !errors.Is(err, apperr.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}

	got, err := s.GetFiling(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetFiling: %v", err)
	}
	if !got.StartTime.Equal(at(4, 19)) || got.Reason != f.Reason {
		t.Fatalf("stale write leaked into row: %+v", got)
	}
}

func TestDeleteFiling(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ana", "Ana Cruz")
	f := insertFiling(t, s, u.ID, at(4, 18), at(4, 20), models.StatusApproved)

	if err := s.DeleteFiling(ctx, f.ID); err != nil {
		t.Fatalf("DeleteFiling: %v", err)
	}
	if err := s.DeleteFiling(ctx, f.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ana", "Ana Cruz")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx Repository) error {
		if err := tx.InsertFiling(ctx, &models.OvertimeFiling{
			UserID: u.ID, StartTime: at(4, 18), EndTime: at(4, 20), Reason: "rolled back", Status: models.StatusApproved,
		}); err != nil {
			return err
		}
		return boom
	})
	if err == nil {
		t.Fatal("expected transaction error")
	}

	got, err := s.ListFilings(ctx, models.FilingQuery{UserID: u.ID})
	if err != nil {
		t.Fatalf("ListFilings: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected rollback to discard the insert, got %d filings", len(got))
	}
}

func TestWithTxPassesThroughAppErrors(t *testing.T) {
	s := newTestStore(t)
	err := s.WithTx(context.Background(), func(tx Repository) error {
		return apperr.Conflict(apperr.ErrOverlap)
	})
	if !errors.Is(err, apperr.ErrOverlap) {
		t.Fatalf("expected overlap conflict to pass through, got %v", err)
	}
}

func TestListAllUsers(t *testing.T) {
	s := newTestStore(t)
	createUser(t, s, "ben", "Ben Reyes")
	createUser(t, s, "ana", "Ana Cruz")

	users, err := s.ListAllUsers(context.Background())
	if err != nil {
		t.Fatalf("ListAllUsers: %v", err)
	}
	if len(users) != 2 || users[0].FullName != "Ana Cruz" || users[0].ID == "" {
		t.Fatalf("unexpected users %+v", users)
	}
}
