package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/metrics"
)

func TestFoodDriveScenario(t *testing.T) {
	w := newWorld()
	orgID := uuid.New()
	event := w.events.add(&models.Event{Title: "Food Drive", OrganizationID: &orgID})
	v := w.volunteer("Vera", "vera@campus.edu")
	m := uuid.New()
	w.contacts[m] = models.Contact{UserID: m, Name: "Max", Email: "max@pantry.org", Source: models.ContactOrganizationMember}
	w.events.confirmed[event.ID] = []uuid.UUID{v}
	w.events.members[orgID] = []uuid.UUID{m}

	fan := NewFanout(w.events, w.queue)
	n, err := fan.EnqueueMessage(context.Background(), event, m, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = fan.EnqueueMessage(context.Background(), event, v, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sum, err := NewMessageSweep(w.queue, w.events, w.options()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Sent: 2}, sum)
	assert.Equal(t, 0, w.queue.pending())

	require.Len(t, w.mailer.sent, 2)
	to := map[string]sentEmail{}
	for _, s := range w.mailer.sent {
		to[s.to] = s
	}
	for _, addr := range []string{"vera@campus.edu", "max@pantry.org"} {
		email, ok := to[addr]
		require.True(t, ok, addr)
		assert.Equal(t, "New message in Food Drive", email.subject)
		assert.Contains(t, email.html, "1 new message")
		assert.Contains(t, email.html, "https://campusreach.test/events/"+event.ID.String()+"/chat")
	}
	require.Len(t, w.logs.logs, 2)
	assert.Equal(t, models.EmailTypeMessageNotification, w.logs.logs[0].EmailType)
	assert.Equal(t, event.ID.String(), w.logs.logs[0].ReferenceID)
}

func TestCoalescingCountsEveryMessage(t *testing.T) {
	w := newWorld()
	event := w.events.add(&models.Event{Title: "Park Cleanup"})
	author := uuid.New()
	v := w.volunteer("Vera", "vera@campus.edu")
	w.events.confirmed[event.ID] = []uuid.UUID{v, author}

	fan := NewFanout(w.events, w.queue)
	for i := 0; i < 3; i++ {
		_, err := fan.EnqueueMessage(context.Background(), event, author, uuid.New())
		require.NoError(t, err)
	}
	require.Len(t, w.queue.entries, 1)
	assert.Len(t, w.queue.entries[0].MessageIDs, 3)

	sum, err := NewMessageSweep(w.queue, w.events, w.options()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, "3 new messages in Park Cleanup", w.mailer.sent[0].subject)
}

func TestMessageSweepSkipsAndMarks(t *testing.T) {
	w := newWorld()
	event := w.events.add(&models.Event{Title: "Tutoring"})
	optedOut := w.volunteer("Olga", "olga@campus.edu")
	w.prefs[optedOut] = models.NotificationPreference{UserID: optedOut, EmailUpdates: false}
	noEmail := w.volunteer("Nils", "")
	unknown := uuid.New()
	ok := w.volunteer("Kim", "kim@campus.edu")

	ctx := context.Background()
	_, err := w.queue.Upsert(ctx, event.ID, uuid.New(), []uuid.UUID{optedOut, noEmail, unknown, ok})
	require.NoError(t, err)
	_, err = w.queue.Upsert(ctx, uuid.New(), uuid.New(), []uuid.UUID{ok}) // event since deleted
	require.NoError(t, err)

	sum, err := NewMessageSweep(w.queue, w.events, w.options()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 5, Sent: 1}, sum)
	assert.Equal(t, 0, w.queue.pending())
	require.Len(t, w.mailer.sent, 1)
	assert.Equal(t, "kim@campus.edu", w.mailer.sent[0].to)
}

func TestMessageSweepFailureStillMarked(t *testing.T) {
	w := newWorld()
	event := w.events.add(&models.Event{Title: "Tutoring"})
	v := w.volunteer("Vera", "vera@campus.edu")
	w.mailer.fail["vera@campus.edu"] = true
	_, err := w.queue.Upsert(context.Background(), event.ID, uuid.New(), []uuid.UUID{v})
	require.NoError(t, err)

	sweep := NewMessageSweep(w.queue, w.events, w.options())
	sum, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Errors: 1}, sum)
	assert.Equal(t, 0, w.queue.pending())
	assert.Empty(t, w.logs.logs)

	sum, err = sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
}

func TestMessageSweepPreferenceLookupFails(t *testing.T) {
	w := newWorld()
	event := w.events.add(&models.Event{Title: "Tutoring"})
	v := w.volunteer("Vera", "vera@campus.edu")
	_, err := w.queue.Upsert(context.Background(), event.ID, uuid.New(), []uuid.UUID{v})
	require.NoError(t, err)

	opts := w.options()
	opts.Prefs = brokenPrefs{}
	sum, err := NewMessageSweep(w.queue, w.events, opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Errors: 1}, sum)
	assert.Empty(t, w.mailer.sent)
	assert.Equal(t, 0, w.queue.pending())
}

func TestMessageSweepRecoversPanic(t *testing.T) {
	w := newWorld()
	event := w.events.add(&models.Event{Title: "Tutoring"})
	bad := w.volunteer("Bea", "bea@campus.edu")
	good := w.volunteer("Gus", "gus@campus.edu")
	w.mailer.explode["bea@campus.edu"] = true
	ctx := context.Background()
	_, err := w.queue.Upsert(ctx, event.ID, uuid.New(), []uuid.UUID{bad, good})
	require.NoError(t, err)

	sum, err := NewMessageSweep(w.queue, w.events, w.options()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, Sent: 1, Errors: 1}, sum)
	assert.Equal(t, 0, w.queue.pending())
	assert.Equal(t, 2, w.queue.marks)
}

func TestMessageSweepStopsOnCancel(t *testing.T) {
	w := newWorld()
	event := w.events.add(&models.Event{Title: "Tutoring"})
	v := w.volunteer("Vera", "vera@campus.edu")
	_, err := w.queue.Upsert(context.Background(), event.ID, uuid.New(), []uuid.UUID{v})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := NewMessageSweep(w.queue, w.events, w.options()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Summary{Total: 1}, sum)
	assert.Equal(t, 1, w.queue.pending())
}

func TestMessageSweepClosesEntryWhenCallerGoesAway(t *testing.T) {
	w := newWorld()
	event := w.events.add(&models.Event{Title: "Tutoring"})
	v := w.volunteer("Vera", "vera@campus.edu")
	_, err := w.queue.Upsert(context.Background(), event.ID, uuid.New(), []uuid.UUID{v})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.mailer.afterSend = cancel
	sweep := NewMessageSweep(w.queue, w.events, w.options())

	sum, err := sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Sent: 1}, sum)
	assert.Equal(t, 0, w.queue.pending())
	require.Len(t, w.logs.logs, 1)

	sum, err = sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	assert.Len(t, w.mailer.sent, 1)
}

func TestMessageSweepListError(t *testing.T) {
	w := newWorld()
	w.queue.listErr = errors.New("db down")
	_, err := NewMessageSweep(w.queue, w.events, w.options()).Run(context.Background())
	assert.Error(t, err)
}

func TestSweepMetrics(t *testing.T) {
	w := newWorld()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	opts := w.options()
	opts.Metrics = m

	event := w.events.add(&models.Event{Title: "Tutoring"})
	v := w.volunteer("Vera", "vera@campus.edu")
	skip := w.volunteer("Olga", "olga@campus.edu")
	w.prefs[skip] = models.NotificationPreference{UserID: skip}
	_, err = w.queue.Upsert(context.Background(), event.ID, uuid.New(), []uuid.UUID{v, skip})
	require.NoError(t, err)

	_, err = NewMessageSweep(w.queue, w.events, opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepEntriesTotal.WithLabelValues(SweepMessages, "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepEntriesTotal.WithLabelValues(SweepMessages, "skipped")))
}

func TestFanoutRecipients(t *testing.T) {
	w := newWorld()
	orgID := uuid.New()
	event := w.events.add(&models.Event{Title: "Food Drive", OrganizationID: &orgID})
	author, v1, both := uuid.New(), uuid.New(), uuid.New()
	w.events.confirmed[event.ID] = []uuid.UUID{v1, both, author}
	w.events.members[orgID] = []uuid.UUID{both, author}

	got, err := NewFanout(w.events, w.queue).Recipients(context.Background(), event, author)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{v1, both}, got)

	event.OrganizationID = nil
	got, err = NewFanout(w.events, w.queue).Recipients(context.Background(), event, author)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{v1, both}, got)
}

func TestReminderSweep(t *testing.T) {
	w := newWorld()
	orgID := uuid.New()
	inWindow := w.events.add(&models.Event{Title: "Beach Cleanup", OrganizationID: &orgID, EndsAt: clock.Add(-24 * time.Hour)})
	tooOld := w.events.add(&models.Event{Title: "Old", EndsAt: clock.Add(-26 * time.Hour)})

	fresh := w.volunteer("Fay", "fay@campus.edu")
	rated := w.volunteer("Rae", "rae@campus.edu")
	optedOut := w.volunteer("Olga", "olga@campus.edu")
	w.prefs[optedOut] = models.NotificationPreference{UserID: optedOut}
	w.events.confirmed[inWindow.ID] = []uuid.UUID{fresh, rated, optedOut}
	w.events.confirmed[tooOld.ID] = []uuid.UUID{fresh}
	ratings := memRatings{{inWindow.ID, rated}: true}
	orgs := orgStub{orgID: "Ocean Friends"}

	sweep := NewReminderSweep(w.events, ratings, orgs, w.options())
	sum, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3, Sent: 1}, sum)
	require.Len(t, w.mailer.sent, 1)
	assert.Equal(t, "fay@campus.edu", w.mailer.sent[0].to)
	assert.Equal(t, "How was Beach Cleanup?", w.mailer.sent[0].subject)
	assert.Contains(t, w.mailer.sent[0].html, "Ocean Friends")
	assert.Contains(t, w.mailer.sent[0].html, "/events/"+inWindow.ID.String()+"/rate")

	sum, err = sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3}, sum)
	assert.Len(t, w.mailer.sent, 1)
}

type orgStub map[uuid.UUID]string

func (o orgStub) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	return &models.Organization{ID: id, Name: o[id]}, nil
}

func TestDigestSweep(t *testing.T) {
	w := newWorld()
	w.events.add(&models.Event{Title: "Soup Kitchen", Location: "Main Hall", CreatedAt: clock.Add(-48 * time.Hour), StartsAt: clock.Add(72 * time.Hour)})
	w.events.add(&models.Event{Title: "Already Over", CreatedAt: clock.Add(-48 * time.Hour), StartsAt: clock.Add(-time.Hour)})
	w.events.add(&models.Event{Title: "Stale", CreatedAt: clock.Add(-10 * 24 * time.Hour), StartsAt: clock.Add(time.Hour)})
	a := w.volunteer("Ana", "ana@campus.edu")
	subs := memSubscribers{w.contacts[a]}

	sweep := NewDigestSweep(w.events, subs, w.options())
	sum, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Sent: 1}, sum)
	require.Len(t, w.mailer.sent, 1)
	html := w.mailer.sent[0].html
	assert.Contains(t, html, "Soup Kitchen")
	assert.Contains(t, html, "Main Hall")
	assert.NotContains(t, html, "Already Over")
	assert.NotContains(t, html, "Stale")
	require.Len(t, w.logs.logs, 1)
	assert.Equal(t, "digest:2026-W11", w.logs.logs[0].ReferenceID)

	sum, err = sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1}, sum)
	assert.Len(t, w.mailer.sent, 1)
}

func TestDigestSweepNoEvents(t *testing.T) {
	w := newWorld()
	a := w.volunteer("Ana", "ana@campus.edu")
	sum, err := NewDigestSweep(w.events, memSubscribers{w.contacts[a]}, w.options()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	assert.Empty(t, w.mailer.sent)
}

func TestDigestReference(t *testing.T) {
	assert.Equal(t, "digest:2026-W01", DigestReference(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "digest:2025-W01", DigestReference(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)))
}
