package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/models"
)

// Reminder window: events that ended between 25 and 23 hours ago.
const (
	ReminderWindowStart = 25 * time.Hour
	ReminderWindowEnd   = 23 * time.Hour
)

// EndedEventSource lists recently ended events and their attendees. *events.Repository implements it.
type EndedEventSource interface {
	EndedBetween(ctx context.Context, from, to time.Time) ([]*models.Event, error)
	ConfirmedVolunteerIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
}

// RatingChecker reports whether a volunteer already rated an event. *ratings.Repository implements it.
type RatingChecker interface {
	HasRated(ctx context.Context, eventID, volunteerID uuid.UUID) (bool, error)
}

// OrganizationReader loads an organization. *organizations.Repository implements it.
type OrganizationReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
}

// ReminderSweep asks confirmed volunteers to rate events that ended about a day ago.
type ReminderSweep struct {
	sweeper
	events  EndedEventSource
	ratings RatingChecker
	orgs    OrganizationReader
}

// NewReminderSweep creates a ReminderSweep. orgs may be nil; the email then omits the host name.
func NewReminderSweep(events EndedEventSource, ratings RatingChecker, orgs OrganizationReader, opts SweepOptions) *ReminderSweep {
	return &ReminderSweep{sweeper: newSweeper(SweepReminders, opts), events: events, ratings: ratings, orgs: orgs}
}

type reminderTarget struct {
	event       *models.Event
	orgName     string
	volunteerID uuid.UUID
}

// RatingReminderSubject is the subject line of a rating reminder.
func RatingReminderSubject(eventTitle string) string {
	return fmt.Sprintf("How was %s?", eventTitle)
}

// Run sends at most one reminder per (event, volunteer).
func (s *ReminderSweep) Run(ctx context.Context) (Summary, error) {
	defer s.observe(time.Now())
	now := s.Now()
	evs, err := s.events.EndedBetween(ctx, now.Add(-ReminderWindowStart), now.Add(-ReminderWindowEnd))
	if err != nil {
		return Summary{}, fmt.Errorf("list ended events: %w", err)
	}
	var targets []reminderTarget
	for _, e := range evs {
		ids, err := s.events.ConfirmedVolunteerIDs(ctx, e.ID)
		if err != nil {
			return Summary{}, fmt.Errorf("list volunteers of event %s: %w", e.ID, err)
		}
		orgName := s.organizationName(ctx, e)
		for _, id := range ids {
			targets = append(targets, reminderTarget{event: e, orgName: orgName, volunteerID: id})
		}
	}
	sum, err := each(ctx, &s.sweeper, targets, func(t reminderTarget) string {
		return s.process(ctx, t)
	})
	s.Logger.Info("rating reminder sweep finished", zap.Int("events", len(evs)), zap.Int("total", sum.Total), zap.Int("sent", sum.Sent), zap.Int("errors", sum.Errors))
	return sum, err
}

func (s *ReminderSweep) organizationName(ctx context.Context, e *models.Event) string {
	if s.orgs == nil || e.OrganizationID == nil {
		return ""
	}
	org, err := s.orgs.GetByID(ctx, *e.OrganizationID)
	if err != nil {
		s.Logger.Warn("load organization failed", zap.String("event_id", e.ID.String()), zap.Error(err))
		return ""
	}
	return org.Name
}

func (s *ReminderSweep) process(ctx context.Context, t reminderTarget) string {
	log := s.Logger.With(zap.String("event_id", t.event.ID.String()), zap.String("volunteer_id", t.volunteerID.String()))
	ref := t.event.ID.String()

	rated, err := s.ratings.HasRated(ctx, t.event.ID, t.volunteerID)
	if err != nil {
		log.Error("check rating failed", zap.Error(err))
		return outcomeFailed
	}
	if rated {
		return outcomeSkipped
	}
	sent, err := s.alreadySent(ctx, models.EmailTypeRatingReminder, ref, t.volunteerID)
	if err != nil {
		log.Error("reminder entry failed", zap.Error(err))
		return outcomeFailed
	}
	if sent {
		return outcomeSkipped
	}
	out, err := s.optedOut(ctx, t.volunteerID)
	if err != nil {
		log.Error("reminder entry failed", zap.Error(err))
		return outcomeFailed
	}
	if out {
		return outcomeSkipped
	}
	contact, found, err := s.Contacts.LookupContact(ctx, t.volunteerID, nil)
	if err != nil {
		log.Error("load recipient failed", zap.Error(err))
		return outcomeFailed
	}
	if !found || contact.Email == "" {
		return outcomeSkipped
	}

	subject := RatingReminderSubject(t.event.Title)
	data := &RatingReminderData{
		RecipientName:    displayName(contact),
		EventTitle:       t.event.Title,
		OrganizationName: t.orgName,
		RateURL:          s.Renderer.Links().EventRating(ref),
	}
	if !s.deliver(ctx, contact, TemplateRatingReminder, subject, data) {
		return outcomeFailed
	}
	s.record(ctx, contact, models.EmailTypeRatingReminder, ref, subject)
	return outcomeSent
}
