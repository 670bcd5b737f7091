// Package schedule books scanning appointments on the clinic's Google
// Calendar. Slots are fixed-length and checked for conflicts before booking.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/jilsnshah/alignflow/internal/config"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Scheduler checks and books appointment slots.
type Scheduler interface {
	CheckAvailability(ctx context.Context, start time.Time) (bool, error)
	Book(ctx context.Context, start time.Time, location, summary string) (string, error)
}

// Calendar is the Google Calendar-backed scheduler.
type Calendar struct {
	svc        *calendar.Service
	calendarID string
	slot       time.Duration
	loc        *time.Location
}

// New builds a Calendar from configuration. The service is authorized
// through the token source produced by auth (see token.go).
func New(ctx context.Context, cfg config.CalendarConfig) (*Calendar, error) {
	if cfg.CalendarID == "" {
		return nil, fmt.Errorf("schedule: calendar id is required")
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule: load timezone %q: %w", cfg.Timezone, err)
	}

	client, err := authorizedClient(ctx, cfg, calendar.CalendarScope)
	if err != nil {
		return nil, err
	}
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("schedule: create calendar service: %w", err)
	}

	return &Calendar{
		svc:        svc,
		calendarID: cfg.CalendarID,
		slot:       time.Duration(cfg.SlotMinutes) * time.Minute,
		loc:        loc,
	}, nil
}

// CheckAvailability reports whether the slot starting at start is free of
// conflicting events.
func (c *Calendar) CheckAvailability(ctx context.Context, start time.Time) (bool, error) {
	start = start.In(c.loc)
	end := start.Add(c.slot)

	events, err := c.svc.Events.List(c.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return false, fmt.Errorf("schedule: list events: %w", err)
	}
	return len(events.Items) == 0, nil
}

// Book creates the appointment event and returns its calendar event ID.
func (c *Calendar) Book(ctx context.Context, start time.Time, location, summary string) (string, error) {
	start = start.In(c.loc)
	end := start.Add(c.slot)

	event := &calendar.Event{
		Summary:  summary,
		Location: location,
		Start:    &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: c.loc.String()},
		End:      &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: c.loc.String()},
	}

	created, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("schedule: insert event: %w", err)
	}
	return created.Id, nil
}

// ParseSlot parses a user-proposed appointment time in the clinic timezone
// and validates the slot alignment. Accepted layout: "2006-01-02 15:04".
func ParseSlot(value string, cfg config.CalendarConfig, now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: load timezone %q: %w", cfg.Timezone, err)
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: parse slot %q: %w", value, err)
	}
	if !t.After(now) {
		return time.Time{}, fmt.Errorf("schedule: slot %q is in the past", value)
	}
	if t.Minute()%cfg.SlotMinutes != 0 {
		return time.Time{}, fmt.Errorf("schedule: slot %q does not align to %d-minute boundaries", value, cfg.SlotMinutes)
	}
	return t, nil
}
