package notifications

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/events"
	"github.com/campusreach/backend/internal/models"
)

const (
	// DigestLookback is how far back new events are collected.
	DigestLookback = 7 * 24 * time.Hour
	// DigestMaxEvents caps the events listed in one digest.
	DigestMaxEvents = 20
)

// EventLister lists events by filter. *events.Repository implements it.
type EventLister interface {
	List(ctx context.Context, f events.ListFilter) ([]*models.Event, error)
}

// SubscriberSource lists digest subscribers. *PreferencesRepository implements it.
type SubscriberSource interface {
	ListDigestSubscribers(ctx context.Context) ([]models.Contact, error)
}

// DigestSweep emails subscribers the upcoming events created during the last week.
type DigestSweep struct {
	sweeper
	events      EventLister
	subscribers SubscriberSource
}

// NewDigestSweep creates a DigestSweep.
func NewDigestSweep(events EventLister, subscribers SubscriberSource, opts SweepOptions) *DigestSweep {
	return &DigestSweep{sweeper: newSweeper(SweepDigest, opts), events: events, subscribers: subscribers}
}

// DigestReference is the email log reference for the ISO week containing t.
func DigestReference(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("digest:%d-W%02d", year, week)
}

// Run sends each subscriber at most one digest per ISO week. Nothing is sent when no events qualify.
func (s *DigestSweep) Run(ctx context.Context) (Summary, error) {
	defer s.observe(time.Now())
	now := s.Now()
	since := now.Add(-DigestLookback)
	evs, err := s.events.List(ctx, events.ListFilter{
		CreatedSince:  &since,
		UpcomingAfter: &now,
		Limit:         DigestMaxEvents,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("list new events: %w", err)
	}
	if len(evs) == 0 {
		s.Logger.Info("weekly digest skipped, no new events")
		return Summary{}, nil
	}
	subs, err := s.subscribers.ListDigestSubscribers(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list digest subscribers: %w", err)
	}

	links := s.Renderer.Links()
	lines := make([]DigestEvent, 0, len(evs))
	for _, e := range evs {
		lines = append(lines, DigestEvent{
			Title:    e.Title,
			When:     e.StartsAt.UTC().Format("Mon, Jan 2 15:04 MST"),
			Location: e.Location,
			URL:      links.Event(e.ID.String()),
		})
	}
	ref := DigestReference(now)
	subject := fmt.Sprintf("%d new volunteer opportunities this week", len(evs))
	if len(evs) == 1 {
		subject = "1 new volunteer opportunity this week"
	}

	sum, err := each(ctx, &s.sweeper, subs, func(c models.Contact) string {
		log := s.Logger.With(zap.String("recipient_id", c.UserID.String()))
		sent, err := s.alreadySent(ctx, models.EmailTypeWeeklyDigest, ref, c.UserID)
		if err != nil {
			log.Error("digest entry failed", zap.Error(err))
			return outcomeFailed
		}
		if sent || c.Email == "" {
			return outcomeSkipped
		}
		data := &WeeklyDigestData{RecipientName: displayName(c), Events: lines, BrowseURL: links.Events()}
		if !s.deliver(ctx, c, TemplateWeeklyDigest, subject, data) {
			return outcomeFailed
		}
		s.record(ctx, c, models.EmailTypeWeeklyDigest, ref, subject)
		return outcomeSent
	})
	s.Logger.Info("weekly digest finished", zap.String("reference", ref), zap.Int("events", len(evs)), zap.Int("total", sum.Total), zap.Int("sent", sum.Sent), zap.Int("errors", sum.Errors))
	return sum, err
}
