package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"teamsched/apperr"
	"teamsched/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Options struct {
	CacheSize int
	Location  *time.Location
	Log       zerolog.Logger
}

// Store implements Repository over gorm with a read-through month cache.
type Store struct {
	db    *gorm.DB
	loc   *time.Location
	cache *monthCache
	log   zerolog.Logger

	// pending is set on transaction-scoped stores.
	pending *invalidation
}

var _ Repository = (*Store)(nil)

func New(db *gorm.DB, opts Options) (*Store, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	cache, err := newMonthCache(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("month cache: %w", err)
	}
	return &Store{
		db:    db,
		loc:   opts.Location,
		cache: cache,
		log:   opts.Log.With().Str("component", "store").Logger(),
	}, nil
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Store) touch(userID string, team bool) {
	if s.pending != nil {
		s.pending.add(userID, team)
		return
	}
	var inv invalidation
	inv.add(userID, team)
	s.cache.invalidate(inv.users, inv.team)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	if s.pending != nil {
		return fn(s)
	}

	pending := &invalidation{}
	var opts []*sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, loc: s.loc, cache: s.cache, log: s.log, pending: pending})
	}, opts...)
	if err != nil {
		return translate("transaction", err, nil)
	}

	if len(pending.users) > 0 || pending.team {
		s.cache.invalidate(pending.users, pending.team)
	}
	return nil
}

// Users

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user", id)
		}
		return nil, translate("get user", err, nil)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user", username)
		}
		return nil, translate("get user", err, nil)
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return translate("create user", s.conn(ctx).Create(user).Error, apperr.ErrDuplicateUsername)
}

func (s *Store) ListAllUsers(ctx context.Context) ([]models.UserSummary, error) {
	var users []models.UserSummary
	err := s.conn(ctx).Model(&models.User{}).
		Select("id, full_name, avatar_url").
		Order("full_name asc, id asc").
		Scan(&users).Error
	if err != nil {
		return nil, translate("list users", err, nil)
	}
	return users, nil
}

// WFH schedules

func (s *Store) GetWfhSchedule(ctx context.Context, userID string) (models.Weekdays, error) {
	var schedule models.WfhSchedule
	err := s.conn(ctx).Where("user_id = ?", userID).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Weekdays{}, nil
	}
	if err != nil {
		return nil, translate("get wfh schedule", err, nil)
	}
	if schedule.DaysOfWeek == nil {
		return models.Weekdays{}, nil
	}
	return schedule.DaysOfWeek, nil
}

func (s *Store) UpsertWfhSchedule(ctx context.Context, userID string, days models.Weekdays) error {
	if days == nil {
		days = models.Weekdays{}
	}
	schedule := models.WfhSchedule{UserID: userID, DaysOfWeek: days, UpdatedAt: time.Now().UTC()}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"days_of_week", "updated_at"}),
	}).Create(&schedule).Error
	if err != nil {
		return translate("upsert wfh schedule", err, nil)
	}
	s.touch(userID, true)
	return nil
}

func (s *Store) ListWfhSchedules(ctx context.Context) ([]models.WfhSchedule, error) {
	var schedules []models.WfhSchedule
	if err := s.conn(ctx).Preload("User").Order("user_id asc").Find(&schedules).Error; err != nil {
		return nil, translate("list wfh schedules", err, nil)
	}
	return schedules, nil
}

// One-off WFH days

func (s *Store) InsertOneOffWfh(ctx context.Context, day *models.OneOffWfhDay) error {
	day.Date = models.CivilDate(day.Date, time.UTC)
	if err := s.conn(ctx).Create(day).Error; err != nil {
		return translate("insert one-off wfh", err, apperr.ErrDuplicateOneOff)
	}
	s.touch(day.UserID, true)
	return nil
}

func (s *Store) ListOneOffWfh(ctx context.Context, userID string, from, to time.Time) ([]models.OneOffWfhDay, error) {
	q := s.conn(ctx).
		Where("date >= ? AND date < ?", models.CivilDate(from, time.UTC), models.CivilDate(to, time.UTC)).
		Order("date asc, user_id asc")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	} else {
		q = q.Preload("User")
	}

	var days []models.OneOffWfhDay
	if err := q.Find(&days).Error; err != nil {
		return nil, translate("list one-off wfh", err, nil)
	}
	return days, nil
}

// Overtime filings

func (s *Store) GetFiling(ctx context.Context, id string) (*models.OvertimeFiling, error) {
	var filing models.OvertimeFiling
	err := s.conn(ctx).Preload("User").Preload("Reviewer").Where("id = ?", id).First(&filing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("filing", id)
		}
		return nil, translate("get filing", err, nil)
	}
	return &filing, nil
}

var filingOrderColumns = map[string]string{
	"":           "overtime_filings.start_time",
	"start_time": "overtime_filings.start_time",
	"status":     "overtime_filings.status",
	"created_at": "overtime_filings.created_at",
}

func (s *Store) ListFilings(ctx context.Context, fq models.FilingQuery) ([]models.OvertimeFiling, error) {
	q := s.conn(ctx).Model(&models.OvertimeFiling{})

	if fq.WithUsers {
		q = q.Preload("User").Preload("Reviewer")
	}
	if fq.UserID != "" {
		q = q.Where("overtime_filings.user_id = ?", fq.UserID)
	}
	if len(fq.Statuses) > 0 {
		q = q.Where("overtime_filings.status IN ?", fq.Statuses)
	}
	if fq.ExcludeID != "" {
		q = q.Where("overtime_filings.id <> ?", fq.ExcludeID)
	}
	if !fq.OverlapsFrom.IsZero() {
		q = q.Where("overtime_filings.end_time > ?", fq.OverlapsFrom.UTC())
	}
	if !fq.OverlapsTo.IsZero() {
		q = q.Where("overtime_filings.start_time < ?", fq.OverlapsTo.UTC())
	}
	if !fq.StartsFrom.IsZero() {
		q = q.Where("overtime_filings.start_time >= ?", fq.StartsFrom.UTC())
	}
	if !fq.StartsBefore.IsZero() {
		q = q.Where("overtime_filings.start_time < ?", fq.StartsBefore.UTC())
	}
	if name := strings.TrimSpace(fq.NameContains); name != "" {
		q = q.Joins("JOIN users ON users.id = overtime_filings.user_id").
			Where("LOWER(users.full_name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}

	column, ok := filingOrderColumns[fq.OrderBy]
	if !ok {
		return nil, apperr.FieldError("sort", fmt.Sprintf("unsupported sort field %q", fq.OrderBy))
	}
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: column, Raw: true}, Desc: fq.Descending})
	if column != filingOrderColumns["start_time"] {
		q = q.Order("overtime_filings.start_time asc")
	}
	q = q.Order("overtime_filings.id asc")

	var filings []models.OvertimeFiling
	if err := q.Find(&filings).Error; err != nil {
		return nil, translate("list filings", err, nil)
	}
	return filings, nil
}

func (s *Store) ListApprovedFilings(ctx context.Context, userID string, from, to time.Time) ([]models.OvertimeFiling, error) {
	return s.ListFilings(ctx, models.FilingQuery{
		UserID:       userID,
		Statuses:     []models.FilingStatus{models.StatusApproved},
		OverlapsFrom: from,
		OverlapsTo:   to,
	})
}

func (s *Store) InsertFiling(ctx context.Context, filing *models.OvertimeFiling) error {
	filing.StartTime = filing.StartTime.UTC()
	filing.EndTime = filing.EndTime.UTC()
	if err := s.conn(ctx).Omit(clause.Associations).Create(filing).Error; err != nil {
		return translate("insert filing", err, nil)
	}
	s.touch(filing.UserID, false)
	return nil
}

func (s *Store) filingOwner(ctx context.Context, id string) (string, error) {
	var owners []string
	if err := s.conn(ctx).Model(&models.OvertimeFiling{}).Where("id = ?", id).Pluck("user_id", &owners).Error; err != nil {
		return "", translate("get filing", err, nil)
	}
	if len(owners) == 0 {
		return "", apperr.NotFound("filing", id)
	}
	return owners[0], nil
}

func (s *Store) UpdateFilingStatus(ctx context.Context, id string, status models.FilingStatus, reviewerID string, at time.Time) error {
	owner, err := s.filingOwner(ctx, id)
	if err != nil {
		return err
	}

	res := s.conn(ctx).Model(&models.OvertimeFiling{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]any{
			"status":      status,
			"reviewer_id": reviewerID,
			"reviewed_at": at.UTC(),
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return translate("update filing status", res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict(apperr.ErrAlreadyReviewed)
	}
	s.touch(owner, false)
	return nil
}

func (s *Store) UpdateFiling(ctx context.Context, filing *models.OvertimeFiling, expectedVersion int) error {
	res := s.conn(ctx).Model(&models.OvertimeFiling{}).
		Where("id = ? AND version = ?", filing.ID, expectedVersion).
		Updates(map[string]any{
			"start_time":  filing.StartTime.UTC(),
			"end_time":    filing.EndTime.UTC(),
			"reason":      filing.Reason,
			"status":      filing.Status,
			"reviewer_id": filing.ReviewerID,
			"reviewed_at": filing.ReviewedAt,
			"version":     expectedVersion + 1,
		})
	if res.Error != nil {
		return translate("update filing", res.Error, nil)
	}
	if res.RowsAffected == 0 {
		if _, err := s.filingOwner(ctx, filing.ID); err != nil {
			return err
		}
		return apperr.Conflict(apperr.ErrConcurrentUpdate)
	}
	filing.Version = expectedVersion + 1
	s.touch(filing.UserID, false)
	return nil
}

func (s *Store) DeleteFiling(ctx context.Context, id string) error {
	owner, err := s.filingOwner(ctx, id)
	if err != nil {
		return err
	}
	res := s.conn(ctx).Where("id = ?", id).Delete(&models.OvertimeFiling{})
	if res.Error != nil {
		return translate("delete filing", res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("filing", id)
	}
	s.touch(owner, false)
	return nil
}

// Month snapshots

// MonthData loads everything needed to classify one user's month grid,
// including the leading and trailing days of adjacent months. Results are
// shared between callers and must not be modified.
func (s *Store) MonthData(ctx context.Context, userID string, month models.Month) (*models.MonthData, error) {
	key := monthKey{UserID: userID, Month: month}
	if s.pending == nil {
		if data, ok := s.cache.user(key); ok {
			return data, nil
		}
	}
	gen := s.cache.generation()

	gridStart, gridEnd := month.Grid(s.loc)
	until := gridEnd.AddDate(0, 0, 1)

	schedule, err := s.GetWfhSchedule(ctx, userID)
	if err != nil {
		return nil, err
	}
	oneOffs, err := s.ListOneOffWfh(ctx, userID, models.CivilDate(gridStart, s.loc), models.CivilDate(until, s.loc))
	if err != nil {
		return nil, err
	}
	filings, err := s.ListFilings(ctx, models.FilingQuery{
		UserID:       userID,
		Statuses:     []models.FilingStatus{models.StatusPending, models.StatusApproved},
		OverlapsFrom: gridStart,
		OverlapsTo:   until,
	})
	if err != nil {
		return nil, err
	}

	data := &models.MonthData{UserID: userID, Schedule: schedule, OneOffs: oneOffs, Filings: filings}
	if s.pending == nil {
		s.cache.storeUser(key, data, gen)
	}
	s.log.Debug().Str("user_id", userID).Str("month", month.String()).Msg("month data loaded")
	return data, nil
}

func (s *Store) TeamMonthData(ctx context.Context, month models.Month) (*models.TeamMonthData, error) {
	if s.pending == nil {
		if data, ok := s.cache.teamMonth(month); ok {
			return data, nil
		}
	}
	gen := s.cache.generation()

	gridStart, gridEnd := month.Grid(s.loc)
	schedules, err := s.ListWfhSchedules(ctx)
	if err != nil {
		return nil, err
	}
	oneOffs, err := s.ListOneOffWfh(ctx, "", models.CivilDate(gridStart, s.loc), models.CivilDate(gridEnd.AddDate(0, 0, 1), s.loc))
	if err != nil {
		return nil, err
	}

	data := &models.TeamMonthData{Schedules: schedules, OneOffs: oneOffs}
	if s.pending == nil {
		s.cache.storeTeam(month, data, gen)
	}
	return data, nil
}
