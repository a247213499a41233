package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/mailer"
	"github.com/campusreach/backend/pkg/metrics"
)

// Sweep names, also used as metric labels.
const (
	SweepMessages  = "message_notifications"
	SweepReminders = "rating_reminders"
	SweepDigest    = "weekly_digest"
)

// bookkeepingTimeout bounds the writes that close an entry once its delivery was attempted.
const bookkeepingTimeout = 5 * time.Second

// Entry outcomes.
const (
	outcomeSent    = "sent"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// Summary is the result of one sweep pass.
type Summary struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Errors int `json:"errors"`
}

func (s *Summary) add(outcome string) {
	switch outcome {
	case outcomeSent:
		s.Sent++
	case outcomeFailed:
		s.Errors++
	}
}

// Runner is one schedulable sweep.
type Runner interface {
	Run(ctx context.Context) (Summary, error)
}

// PreferenceReader returns a user's preferences, defaults included. *PreferencesRepository implements it.
type PreferenceReader interface {
	Get(ctx context.Context, userID uuid.UUID) (models.NotificationPreference, error)
}

// ContactLookup resolves a recipient's name and address. *profiles.Repository implements it.
type ContactLookup interface {
	LookupContact(ctx context.Context, userID uuid.UUID, preferOrg *uuid.UUID) (models.Contact, bool, error)
}

// EmailLogStore is the audit log. *emaillogs.Repository implements it.
type EmailLogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
	Exists(ctx context.Context, emailType, referenceID string, recipientID uuid.UUID) (bool, error)
}

// SweepOptions are the collaborators every sweep shares.
type SweepOptions struct {
	Prefs    PreferenceReader
	Contacts ContactLookup
	Logs     EmailLogStore
	Mailer   mailer.Sender
	Renderer *Renderer
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Now      func() time.Time
}

type sweeper struct {
	name string
	SweepOptions
}

func newSweeper(name string, opts SweepOptions) sweeper {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Logger = opts.Logger.With(zap.String("sweep", name))
	return sweeper{name: name, SweepOptions: opts}
}

func (s *sweeper) observe(start time.Time) {
	s.Metrics.ObserveSweep(s.name, time.Since(start).Seconds())
}

// each runs fn once per item, stopping between items when ctx is done.
// A panic inside fn fails that item only.
func each[T any](ctx context.Context, s *sweeper, items []T, fn func(T) string) (Summary, error) {
	sum := Summary{Total: len(items)}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			s.Logger.Warn("sweep interrupted", zap.Int("done", sum.Sent+sum.Errors), zap.Int("total", sum.Total))
			return sum, err
		}
		outcome := s.protect(func() string { return fn(item) })
		sum.add(outcome)
		s.Metrics.SweepOutcome(s.name, outcome)
	}
	return sum, nil
}

func (s *sweeper) protect(fn func() string) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("sweep entry panicked", zap.Any("panic", r))
			outcome = outcomeFailed
		}
	}()
	return fn()
}

// optedOut reports whether the user turned email updates off. On a lookup failure it returns the
// error and callers count the entry as failed without sending.
func (s *sweeper) optedOut(ctx context.Context, userID uuid.UUID) (bool, error) {
	p, err := s.Prefs.Get(ctx, userID)
	if err != nil {
		return true, fmt.Errorf("load preferences: %w", err)
	}
	return !p.EmailUpdates, nil
}

// alreadySent reports whether emailType went to userID for ref before.
func (s *sweeper) alreadySent(ctx context.Context, emailType, ref string, userID uuid.UUID) (bool, error) {
	ok, err := s.Logs.Exists(ctx, emailType, ref, userID)
	if err != nil {
		return false, fmt.Errorf("check email log: %w", err)
	}
	return ok, nil
}

// deliver renders and sends one email. It reports whether the provider accepted it.
func (s *sweeper) deliver(ctx context.Context, to models.Contact, template, subject string, data layoutSetter) bool {
	html, err := s.Renderer.Render(template, subject, data)
	if err != nil {
		s.Logger.Error("render email failed", zap.String("template", template), zap.Error(err))
		return false
	}
	res := s.Mailer.Send(ctx, to.Email, subject, html)
	if !res.Success {
		s.Logger.Warn("send email failed",
			zap.String("template", template),
			zap.String("recipient_id", to.UserID.String()),
			zap.Error(res.Err))
		return false
	}
	return true
}

// detached outlives cancellation of the sweep's caller, so an attempted entry is always closed.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

// record writes the audit row for a delivered email. Failure is logged only; the email is out.
func (s *sweeper) record(ctx context.Context, to models.Contact, emailType, ref, subject string) {
	ctx, cancel := detached(ctx)
	defer cancel()
	recipient := to.UserID
	el := &models.EmailLog{
		EmailType:      emailType,
		RecipientID:    &recipient,
		RecipientEmail: to.Email,
		ReferenceID:    ref,
		Subject:        subject,
		SentAt:         s.Now(),
	}
	if err := s.Logs.Create(ctx, el); err != nil {
		s.Logger.Error("write email log failed", zap.String("email_type", emailType), zap.String("reference_id", ref), zap.Error(err))
	}
}

func displayName(c models.Contact) string {
	if c.Name != "" {
		return c.Name
	}
	return "there"
}
