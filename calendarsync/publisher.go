package calendarsync

import (
	"context"

	"teamsched/config"
	"teamsched/scheduling"

	"github.com/rs/zerolog"
)

// New returns a Google publisher when calendar sync is configured and a
// no-op publisher otherwise.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (scheduling.Publisher, error) {
	if !cfg.CalendarSyncEnabled() {
		log.Info().Msg("calendar sync disabled")
		return scheduling.NopPublisher{}, nil
	}
	p, err := NewGooglePublisher(ctx, cfg.GoogleCalendarID, cfg.GoogleCredentialsFile, cfg.Location, log)
	if err != nil {
		return nil, err
	}
	log.Info().Str("calendar_id", cfg.GoogleCalendarID).Msg("calendar sync enabled")
	return p, nil
}
