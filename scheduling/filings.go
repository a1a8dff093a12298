package scheduling

import (
	"context"
	"fmt"
	"time"

	"teamsched/apperr"
	"teamsched/config"
	"teamsched/models"
	"teamsched/store"

	"github.com/rs/zerolog"
)

type FilingOptions struct {
	Mode      config.ApprovalMode
	Publisher Publisher
	Log       zerolog.Logger
	Now       func() time.Time
}

// FilingService runs the overtime filing lifecycle: submit, review, edit and
// withdraw. Every check and the write it guards share one transaction.
type FilingService struct {
	repo      store.Repository
	validator *ConflictValidator
	publisher Publisher
	mode      config.ApprovalMode
	log       zerolog.Logger
	now       func() time.Time
}

func NewFilingService(repo store.Repository, validator *ConflictValidator, opts FilingOptions) *FilingService {
	if opts.Mode == "" {
		opts.Mode = config.ApprovalReview
	}
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &FilingService{
		repo:      repo,
		validator: validator,
		publisher: opts.Publisher,
		mode:      opts.Mode,
		log:       opts.Log.With().Str("component", "filings").Logger(),
		now:       opts.Now,
	}
}

func (s *FilingService) initialStatus() models.FilingStatus {
	if s.mode == config.ApprovalDirect {
		return models.StatusApproved
	}
	return models.StatusPending
}

// Submit files overtime for userID, or for the actor when userID is empty.
func (s *FilingService) Submit(ctx context.Context, actor models.Actor, userID string, in ParsedFiling) (*models.OvertimeFiling, error) {
	if userID == "" {
		userID = actor.ActorID()
	}
	if !models.CanActFor(actor, userID) {
		return nil, apperr.ErrForbidden
	}

	filing := &models.OvertimeFiling{
		UserID:    userID,
		StartTime: in.Start.UTC().Truncate(time.Minute),
		EndTime:   in.End.UTC().Truncate(time.Minute),
		Reason:    in.Reason,
		Status:    s.initialStatus(),
	}

	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		if err := s.validator.ValidateOvertimeSubmission(ctx, tx, userID, filing.StartTime, filing.EndTime, ""); err != nil {
			return err
		}
		if err := tx.InsertFiling(ctx, filing); err != nil {
			return err
		}
		stored, err := tx.GetFiling(ctx, filing.ID)
		if err != nil {
			return err
		}
		filing = stored
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("overtime submission rejected")
		return nil, err
	}

	s.log.Info().Str("filing_id", filing.ID).Str("user_id", userID).Str("status", string(filing.Status)).Msg("overtime filed")
	if filing.Status == models.StatusApproved {
		s.publish(ctx, filing)
	}
	return filing, nil
}

// Review applies an administrator decision to a pending filing. Approval
// re-runs the overlap check since other filings may have been approved meanwhile.
func (s *FilingService) Review(ctx context.Context, actor models.Actor, filingID string, decision models.Decision) (*models.OvertimeFiling, error) {
	admin, ok := actor.(models.Administrator)
	if !ok {
		return nil, apperr.ErrForbidden
	}
	status, ok := decision.Status()
	if !ok {
		return nil, apperr.FieldError("decision", fmt.Sprintf("Unknown decision %q.", decision))
	}

	var reviewed *models.OvertimeFiling
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		f, err := tx.GetFiling(ctx, filingID)
		if err != nil {
			return err
		}
		if f.Status != models.StatusPending {
			return apperr.Conflict(apperr.ErrAlreadyReviewed)
		}
		if status == models.StatusApproved {
			if err := s.validator.ValidateOvertimeSubmission(ctx, tx, f.UserID, f.StartTime, f.EndTime, f.ID); err != nil {
				return err
			}
		}
		if err := tx.UpdateFilingStatus(ctx, filingID, status, admin.ID, s.now().UTC().Truncate(time.Second)); err != nil {
			return err
		}
		reviewed, err = tx.GetFiling(ctx, filingID)
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Str("filing_id", filingID).Str("decision", string(decision)).Msg("review failed")
		return nil, err
	}

	s.log.Info().Str("filing_id", filingID).Str("reviewer_id", admin.ID).Str("status", string(status)).Msg("overtime reviewed")
	if reviewed.Status == models.StatusApproved {
		s.publish(ctx, reviewed)
	}
	return reviewed, nil
}

// Edit rewrites a pending or approved filing in place. A non-zero version
// must match the stored one. The filing returns to the initial status of the
// approval mode and loses its review.
func (s *FilingService) Edit(ctx context.Context, actor models.Actor, filingID string, in ParsedFiling, version int) (*models.OvertimeFiling, error) {
	var (
		updated    *models.OvertimeFiling
		wasApprove bool
	)
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		f, err := tx.GetFiling(ctx, filingID)
		if err != nil {
			return err
		}
		if !models.CanActFor(actor, f.UserID) {
			return apperr.ErrForbidden
		}
		if f.Status == models.StatusDeclined {
			return apperr.Conflict(apperr.ErrNotEditable)
		}
		if version != 0 && version != f.Version {
			return apperr.Conflict(apperr.ErrConcurrentUpdate)
		}

		start, end := in.Start.UTC().Truncate(time.Minute), in.End.UTC().Truncate(time.Minute)
		if err := s.validator.ValidateOvertimeSubmission(ctx, tx, f.UserID, start, end, f.ID); err != nil {
			return err
		}

		wasApprove = f.Status == models.StatusApproved
		expected := f.Version
		f.StartTime, f.EndTime, f.Reason = start, end, in.Reason
		f.Status = s.initialStatus()
		f.ReviewerID, f.ReviewedAt, f.Reviewer = nil, nil, nil
		if err := tx.UpdateFiling(ctx, f, expected); err != nil {
			return err
		}
		updated = f
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("filing_id", filingID).Msg("overtime edit rejected")
		return nil, err
	}

	s.log.Info().Str("filing_id", filingID).Str("status", string(updated.Status)).Msg("overtime edited")
	switch {
	case updated.Status == models.StatusApproved:
		s.publish(ctx, updated)
	case wasApprove:
		s.unpublish(ctx, filingID)
	}
	return updated, nil
}

// Withdraw deletes a filing regardless of its status.
func (s *FilingService) Withdraw(ctx context.Context, actor models.Actor, filingID string) error {
	f, err := s.repo.GetFiling(ctx, filingID)
	if err != nil {
		return err
	}
	if !models.CanActFor(actor, f.UserID) {
		return apperr.ErrForbidden
	}
	if err := s.repo.DeleteFiling(ctx, filingID); err != nil {
		s.log.Warn().Err(err).Str("filing_id", filingID).Msg("withdraw failed")
		return err
	}

	s.log.Info().Str("filing_id", filingID).Str("user_id", f.UserID).Msg("overtime withdrawn")
	if f.Status == models.StatusApproved {
		s.unpublish(ctx, filingID)
	}
	return nil
}

func (s *FilingService) Get(ctx context.Context, actor models.Actor, filingID string) (*models.OvertimeFiling, error) {
	f, err := s.repo.GetFiling(ctx, filingID)
	if err != nil {
		return nil, err
	}
	if !models.CanActFor(actor, f.UserID) {
		return nil, apperr.ErrForbidden
	}
	return f, nil
}

type ListQuery struct {
	UserID   string
	From     time.Time
	To       time.Time
	Statuses []models.FilingStatus
}

// List returns a user's filings intersecting [From, To), newest first.
func (s *FilingService) List(ctx context.Context, actor models.Actor, q ListQuery) ([]models.OvertimeFiling, error) {
	if q.UserID == "" {
		q.UserID = actor.ActorID()
	}
	if !models.CanActFor(actor, q.UserID) {
		return nil, apperr.ErrForbidden
	}
	for _, st := range q.Statuses {
		if !st.Valid() {
			return nil, apperr.FieldError("status", fmt.Sprintf("Unknown status %q.", st))
		}
	}
	return s.repo.ListFilings(ctx, models.FilingQuery{
		UserID:       q.UserID,
		Statuses:     q.Statuses,
		OverlapsFrom: q.From,
		OverlapsTo:   q.To,
		WithUsers:    true,
		Descending:   true,
	})
}

// ListPending returns the review queue, oldest request first.
func (s *FilingService) ListPending(ctx context.Context, actor models.Actor) ([]models.OvertimeFiling, error) {
	if !models.IsAdministrator(actor) {
		return nil, apperr.ErrForbidden
	}
	return s.repo.ListFilings(ctx, models.FilingQuery{
		Statuses:  []models.FilingStatus{models.StatusPending},
		OrderBy:   "created_at",
		WithUsers: true,
	})
}

type HistoryQuery struct {
	Search string
	Sort   string
	Order  string
}

func (s *FilingService) History(ctx context.Context, actor models.Actor, q HistoryQuery) ([]models.OvertimeFiling, error) {
	if !models.IsAdministrator(actor) {
		return nil, apperr.ErrForbidden
	}
	switch q.Sort {
	case "", "start_time", "status":
	default:
		return nil, apperr.FieldError("sort", "Sort by start_time or status.")
	}
	desc := true
	switch q.Order {
	case "", "desc":
	case "asc":
		desc = false
	default:
		return nil, apperr.FieldError("order", "Order must be asc or desc.")
	}
	return s.repo.ListFilings(ctx, models.FilingQuery{
		NameContains: q.Search,
		OrderBy:      q.Sort,
		Descending:   desc,
		WithUsers:    true,
	})
}

func (s *FilingService) UserHistory(ctx context.Context, actor models.Actor, userID string) ([]models.OvertimeFiling, error) {
	if !models.CanActFor(actor, userID) {
		return nil, apperr.ErrForbidden
	}
	return s.repo.ListFilings(ctx, models.FilingQuery{UserID: userID, WithUsers: true, Descending: true})
}

func (s *FilingService) publish(ctx context.Context, f *models.OvertimeFiling) {
	if err := s.publisher.PublishApproved(ctx, f); err != nil {
		s.log.Error().Err(err).Str("filing_id", f.ID).Msg("calendar publish failed")
	}
}

func (s *FilingService) unpublish(ctx context.Context, filingID string) {
	if err := s.publisher.Remove(ctx, filingID); err != nil {
		s.log.Error().Err(err).Str("filing_id", filingID).Msg("calendar removal failed")
	}
}
