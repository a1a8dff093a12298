// Package calendarsync mirrors approved overtime onto a shared Google Calendar.
package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"teamsched/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GooglePublisher writes one event per approved filing. Event ids derive from
// filing ids so publishing the same filing twice updates the existing event.
type GooglePublisher struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
	log        zerolog.Logger
	timeout    time.Duration
}

// TokenSource loads service account credentials with the events scope.
func TokenSource(ctx context.Context, credentialsFile string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read google credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}
	return creds.TokenSource, nil
}

func NewGooglePublisher(ctx context.Context, calendarID, credentialsFile string, loc *time.Location, log zerolog.Logger) (*GooglePublisher, error) {
	ts, err := TokenSource(ctx, credentialsFile)
	if err != nil {
		return nil, err
	}
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return NewWithService(svc, calendarID, loc, log), nil
}

func NewWithService(svc *calendar.Service, calendarID string, loc *time.Location, log zerolog.Logger) *GooglePublisher {
	if loc == nil {
		loc = time.UTC
	}
	return &GooglePublisher{
		svc:        svc,
		calendarID: calendarID,
		loc:        loc,
		log:        log.With().Str("component", "calendarsync").Logger(),
		timeout:    10 * time.Second,
	}
}

// EventID maps a filing id onto the base32hex alphabet Google requires.
func EventID(filingID string) string {
	return "ot" + strings.ToLower(strings.ReplaceAll(filingID, "-", ""))
}

func (p *GooglePublisher) Event(f *models.OvertimeFiling) *calendar.Event {
	name := f.UserID
	if f.User != nil {
		name = f.User.DisplayName()
	}
	return &calendar.Event{
		Id:          EventID(f.ID),
		Summary:     "Overtime: " + name,
		Description: f.Reason,
		Start: &calendar.EventDateTime{
			DateTime: f.StartTime.In(p.loc).Format(time.RFC3339),
			TimeZone: p.loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: f.EndTime.In(p.loc).Format(time.RFC3339),
			TimeZone: p.loc.String(),
		},
		Transparency: "transparent",
	}
}

func (p *GooglePublisher) PublishApproved(ctx context.Context, f *models.OvertimeFiling) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	event := p.Event(f)
	_, err := p.svc.Events.Update(p.calendarID, event.Id, event).Context(ctx).Do()
	if isStatus(err, http.StatusNotFound) {
		_, err = p.svc.Events.Insert(p.calendarID, event).Context(ctx).Do()
	}
	if err != nil {
		return fmt.Errorf("publish filing %s: %w", f.ID, err)
	}
	p.log.Debug().Str("filing_id", f.ID).Str("event_id", event.Id).Msg("overtime published")
	return nil
}

func (p *GooglePublisher) Remove(ctx context.Context, filingID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.svc.Events.Delete(p.calendarID, EventID(filingID)).Context(ctx).Do()
	if err != nil && !isStatus(err, http.StatusNotFound) && !isStatus(err, http.StatusGone) {
		return fmt.Errorf("remove filing %s: %w", filingID, err)
	}
	p.log.Debug().Str("filing_id", filingID).Msg("overtime event removed")
	return nil
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}
