package scheduling

import (
	"context"
	"fmt"
	"time"

	"teamsched/apperr"
	"teamsched/models"
	"teamsched/store"

	"github.com/rs/zerolog"
)

type WfhService struct {
	repo      store.Repository
	validator *ConflictValidator
	log       zerolog.Logger
}

func NewWfhService(repo store.Repository, validator *ConflictValidator, log zerolog.Logger) *WfhService {
	return &WfhService{
		repo:      repo,
		validator: validator,
		log:       log.With().Str("component", "wfh").Logger(),
	}
}

// GetSchedule returns the weekly WFH days, empty when none were saved.
func (s *WfhService) GetSchedule(ctx context.Context, actor models.Actor, userID string) (models.Weekdays, error) {
	if userID == "" {
		userID = actor.ActorID()
	}
	if !models.CanActFor(actor, userID) {
		return nil, apperr.ErrForbidden
	}
	return s.repo.GetWfhSchedule(ctx, userID)
}

// SaveSchedule replaces the whole weekly day set.
func (s *WfhService) SaveSchedule(ctx context.Context, actor models.Actor, userID string, days models.Weekdays) (models.Weekdays, error) {
	if userID == "" {
		userID = actor.ActorID()
	}
	if !models.CanActFor(actor, userID) {
		return nil, apperr.ErrForbidden
	}
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, apperr.FieldError("days_of_week", fmt.Sprintf("Weekday %d is outside 0-6.", d))
		}
	}

	days = days.Normalized()
	if err := s.repo.UpsertWfhSchedule(ctx, userID, days); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("save schedule failed")
		return nil, err
	}
	s.log.Info().Str("user_id", userID).Str("days", days.Label()).Msg("wfh schedule saved")
	return days, nil
}

// SubmitOneOff files a single WFH day. Once created the day is immutable;
// date is a civil date.
func (s *WfhService) SubmitOneOff(ctx context.Context, actor models.Actor, userID string, date time.Time, reason string) (*models.OneOffWfhDay, error) {
	if userID == "" {
		userID = actor.ActorID()
	}
	if !models.CanActFor(actor, userID) {
		return nil, apperr.ErrForbidden
	}

	day := &models.OneOffWfhDay{UserID: userID, Date: date, Reason: reason}
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		if err := s.validator.ValidateOneOffWfhSubmission(ctx, tx, userID, day.Date); err != nil {
			return err
		}
		return tx.InsertOneOffWfh(ctx, day)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("date", models.DateKey(day.Date)).Msg("one-off wfh rejected")
		return nil, err
	}

	s.log.Info().Str("user_id", userID).Str("date", models.DateKey(day.Date)).Msg("one-off wfh filed")
	return day, nil
}
