package store

import (
	"context"
	"time"

	"teamsched/models"
)

// Repository is the persistence contract consumed by the scheduling services.
// Errors are already translated into apperr kinds.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	ListAllUsers(ctx context.Context) ([]models.UserSummary, error)

	GetWfhSchedule(ctx context.Context, userID string) (models.Weekdays, error)
	UpsertWfhSchedule(ctx context.Context, userID string, days models.Weekdays) error
	ListWfhSchedules(ctx context.Context) ([]models.WfhSchedule, error)

	InsertOneOffWfh(ctx context.Context, day *models.OneOffWfhDay) error
	// ListOneOffWfh lists one-off days with date in [from, to). An empty
	// userID lists every user's days with the owner preloaded.
	ListOneOffWfh(ctx context.Context, userID string, from, to time.Time) ([]models.OneOffWfhDay, error)

	GetFiling(ctx context.Context, id string) (*models.OvertimeFiling, error)
	ListFilings(ctx context.Context, q models.FilingQuery) ([]models.OvertimeFiling, error)
	// ListApprovedFilings lists approved filings intersecting [from, to), ordered by start.
	ListApprovedFilings(ctx context.Context, userID string, from, to time.Time) ([]models.OvertimeFiling, error)
	InsertFiling(ctx context.Context, filing *models.OvertimeFiling) error
	// UpdateFilingStatus applies a review decision to a pending filing.
	UpdateFilingStatus(ctx context.Context, id string, status models.FilingStatus, reviewerID string, at time.Time) error
	// UpdateFiling rewrites the filing in place when its version still equals expectedVersion.
	UpdateFiling(ctx context.Context, filing *models.OvertimeFiling, expectedVersion int) error
	DeleteFiling(ctx context.Context, id string) error

	MonthData(ctx context.Context, userID string, month models.Month) (*models.MonthData, error)
	TeamMonthData(ctx context.Context, month models.Month) (*models.TeamMonthData, error)

	// WithTx runs fn inside one transaction, serializable on Postgres.
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
