package scheduling

import (
	"context"

	"teamsched/models"
)

// Publisher mirrors approved overtime to an external calendar. Calls happen
// after commit and failures never undo the committed change.
type Publisher interface {
	PublishApproved(ctx context.Context, filing *models.OvertimeFiling) error
	Remove(ctx context.Context, filingID string) error
}

type NopPublisher struct{}

func (NopPublisher) PublishApproved(context.Context, *models.OvertimeFiling) error { return nil }
func (NopPublisher) Remove(context.Context, string) error                          { return nil }
