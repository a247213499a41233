package notifications

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusreach/backend/internal/emaillogs"
	"github.com/campusreach/backend/internal/events"
	"github.com/campusreach/backend/internal/organizations"
	"github.com/campusreach/backend/internal/profiles"
	"github.com/campusreach/backend/internal/ratings"
)

// Sweeps groups the scheduled passes.
type Sweeps struct {
	Messages  Runner
	Reminders Runner
	Digest    Runner
}

// NewSweeps wires every sweep against Postgres. opts supplies the mailer, renderer, metrics and
// logger; the stores are filled in here.
func NewSweeps(pool *pgxpool.Pool, opts SweepOptions) *Sweeps {
	eventRepo := events.NewRepository(pool)
	prefs := NewPreferencesRepository(pool)
	opts.Prefs = prefs
	opts.Contacts = profiles.NewRepository(pool)
	opts.Logs = emaillogs.NewRepository(pool)
	return &Sweeps{
		Messages:  NewMessageSweep(NewQueueRepository(pool), eventRepo, opts),
		Reminders: NewReminderSweep(eventRepo, ratings.NewRepository(pool), organizations.NewRepository(pool), opts),
		Digest:    NewDigestSweep(eventRepo, prefs, opts),
	}
}
