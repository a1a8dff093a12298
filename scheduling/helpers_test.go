package scheduling

import (
	"context"
	"sync"
	"testing"
	"time"

	"teamsched/config"
	"teamsched/database"
	"teamsched/models"
	"teamsched/store"

	"github.com/rs/zerolog"
)

// March 2024: the 1st is a Friday, the 4th a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, time.UTC)
}

func civil(day int) time.Time {
	return time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC)
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []string
	owners    []string
	removed   []string
	err       error
}

func (p *recordingPublisher) PublishApproved(_ context.Context, f *models.OvertimeFiling) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, f.ID)
	owner := ""
	if f.User != nil {
		owner = f.User.FullName
	}
	p.owners = append(p.owners, owner)
	return p.err
}

func (p *recordingPublisher) Remove(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, id)
	return p.err
}

type testEnv struct {
	repo      *store.Store
	validator *ConflictValidator
	filings   *FilingService
	wfh       *WfhService
	calendar  *CalendarService
	publisher *recordingPublisher
	admin     *models.User
	ana       *models.User
	ben       *models.User
}

func newEnv(t *testing.T, mode config.ApprovalMode) *testEnv {
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
	repo, err := store.New(db, store.Options{CacheSize: 16, Location: time.UTC, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	now := func() time.Time { return at(15, 9, 0) }
	env := &testEnv{
		repo:      repo,
		validator: NewConflictValidator(time.UTC),
		publisher: &recordingPublisher{},
	}
	env.filings = NewFilingService(repo, env.validator, FilingOptions{Mode: mode, Publisher: env.publisher, Log: zerolog.Nop(), Now: now})
	env.wfh = NewWfhService(repo, env.validator, zerolog.Nop())
	env.calendar = NewCalendarService(repo, time.UTC, now)

	env.admin = env.user(t, "boss", "Bea Boss", models.RoleAdmin)
	env.ana = env.user(t, "ana", "Ana Cruz", models.RoleEmployee)
	env.ben = env.user(t, "ben", "Ben Reyes", models.RoleEmployee)
	return env
}

func (e *testEnv) user(t *testing.T, username, fullName string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: username, FullName: fullName, PasswordHash: "x", Role: role}
	if err := e.repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// seedFiling writes directly through the store, bypassing the validator.
func (e *testEnv) seedFiling(t *testing.T, userID string, start, end time.Time, status models.FilingStatus) *models.OvertimeFiling {
	t.Helper()
	f := &models.OvertimeFiling{UserID: userID, StartTime: start, EndTime: end, Reason: "seeded overtime", Status: status}
	if err := e.repo.InsertFiling(context.Background(), f); err != nil {
		t.Fatalf("seed filing: %v", err)
	}
	return f
}

func parsed(start, end time.Time) ParsedFiling {
	return ParsedFiling{Start: start, End: end, Reason: "production incident follow-up"}
}
