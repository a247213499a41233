package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusreach/backend/internal/events"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/mailer"
)

var clock = time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC)

// memQueue mimics message_notification_queue, including the partial unique index.
type memQueue struct {
	mu      sync.Mutex
	entries []*models.MessageNotificationEntry
	marks   int
	listErr error
}

func (q *memQueue) Upsert(_ context.Context, eventID, messageID uuid.UUID, recipients []uuid.UUID) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, r := range recipients {
		var pending *models.MessageNotificationEntry
		for _, e := range q.entries {
			if e.RecipientID == r && e.EventID == eventID && e.ProcessedAt == nil {
				pending = e
			}
		}
		if pending != nil {
			pending.MessageIDs = append(pending.MessageIDs, messageID)
			continue
		}
		q.entries = append(q.entries, &models.MessageNotificationEntry{
			ID:          uuid.New(),
			RecipientID: r,
			EventID:     eventID,
			MessageIDs:  []uuid.UUID{messageID},
			CreatedAt:   clock.Add(time.Duration(len(q.entries)+i) * time.Millisecond),
		})
	}
	return len(recipients), nil
}

func (q *memQueue) ListPending(context.Context) ([]*models.MessageNotificationEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.listErr != nil {
		return nil, q.listErr
	}
	var out []*models.MessageNotificationEntry
	for _, e := range q.entries {
		if e.ProcessedAt == nil {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MarkProcessed refuses a done context the way pgx does.
func (q *memQueue) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.ID == id && e.ProcessedAt == nil {
			e.ProcessedAt = &at
			q.marks++
		}
	}
	return nil
}

func (q *memQueue) pending() int {
	n := 0
	for _, e := range q.entries {
		if e.ProcessedAt == nil {
			n++
		}
	}
	return n
}

type memPrefs map[uuid.UUID]models.NotificationPreference

type brokenPrefs struct{}

func (brokenPrefs) Get(context.Context, uuid.UUID) (models.NotificationPreference, error) {
	return models.NotificationPreference{}, errors.New("preferences unavailable")
}

func (p memPrefs) Get(_ context.Context, userID uuid.UUID) (models.NotificationPreference, error) {
	if pref, ok := p[userID]; ok {
		return pref, nil
	}
	return models.DefaultNotificationPreference(userID), nil
}

func (p memPrefs) Save(_ context.Context, pref *models.NotificationPreference) error {
	pref.UpdatedAt = clock
	p[pref.UserID] = *pref
	return nil
}

// memEvents serves events, signups and memberships.
type memEvents struct {
	events    map[uuid.UUID]*models.Event
	confirmed map[uuid.UUID][]uuid.UUID
	members   map[uuid.UUID][]uuid.UUID
}

func newMemEvents() *memEvents {
	return &memEvents{
		events:    map[uuid.UUID]*models.Event{},
		confirmed: map[uuid.UUID][]uuid.UUID{},
		members:   map[uuid.UUID][]uuid.UUID{},
	}
}

func (m *memEvents) add(e *models.Event) *models.Event {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.events[e.ID] = e
	return e
}

func (m *memEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, apperrors.NotFound("event not found")
	}
	return e, nil
}

func (m *memEvents) ConfirmedVolunteerIDs(_ context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	return m.confirmed[eventID], nil
}

func (m *memEvents) OrganizationMemberIDs(_ context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	return m.members[orgID], nil
}

func (m *memEvents) EndedBetween(_ context.Context, from, to time.Time) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range m.events {
		if !e.EndsAt.Before(from) && !e.EndsAt.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) List(_ context.Context, f events.ListFilter) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range m.events {
		if f.CreatedSince != nil && e.CreatedAt.Before(*f.CreatedSince) {
			continue
		}
		if f.UpcomingAfter != nil && !e.StartsAt.After(*f.UpcomingAfter) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

type memContacts map[uuid.UUID]models.Contact

func (c memContacts) LookupContact(_ context.Context, userID uuid.UUID, _ *uuid.UUID) (models.Contact, bool, error) {
	contact, ok := c[userID]
	return contact, ok, nil
}

type memLogs struct {
	logs []*models.EmailLog
}

func (l *memLogs) Create(ctx context.Context, el *models.EmailLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el.ID = uuid.New()
	l.logs = append(l.logs, el)
	return nil
}

func (l *memLogs) Exists(_ context.Context, emailType, ref string, recipientID uuid.UUID) (bool, error) {
	for _, el := range l.logs {
		if el.EmailType == emailType && el.ReferenceID == ref && el.RecipientID != nil && *el.RecipientID == recipientID {
			return true, nil
		}
	}
	return false, nil
}

type sentEmail struct {
	to, subject, html string
}

// fakeMailer records sends. Addresses in fail are rejected; addresses in explode panic.
// afterSend runs after each accepted email.
type fakeMailer struct {
	sent      []sentEmail
	fail      map[string]bool
	explode   map[string]bool
	afterSend func()
}

func (m *fakeMailer) Send(_ context.Context, to, subject, html string) mailer.Result {
	if m.explode[to] {
		panic("provider client bug")
	}
	if m.fail[to] {
		return mailer.Result{Err: errors.New("provider unavailable")}
	}
	m.sent = append(m.sent, sentEmail{to: to, subject: subject, html: html})
	if m.afterSend != nil {
		m.afterSend()
	}
	return mailer.Result{Success: true}
}

type memRatings map[[2]uuid.UUID]bool

func (r memRatings) HasRated(_ context.Context, eventID, volunteerID uuid.UUID) (bool, error) {
	return r[[2]uuid.UUID{eventID, volunteerID}], nil
}

type memSubscribers []models.Contact

func (s memSubscribers) ListDigestSubscribers(context.Context) ([]models.Contact, error) {
	return s, nil
}

type world struct {
	queue    *memQueue
	prefs    memPrefs
	events   *memEvents
	contacts memContacts
	logs     *memLogs
	mailer   *fakeMailer
	renderer *Renderer
}

func newWorld() *world {
	r, err := NewRenderer(Links{BaseURL: "https://campusreach.test"})
	if err != nil {
		panic(err)
	}
	return &world{
		queue:    &memQueue{},
		prefs:    memPrefs{},
		events:   newMemEvents(),
		contacts: memContacts{},
		logs:     &memLogs{},
		mailer:   &fakeMailer{fail: map[string]bool{}, explode: map[string]bool{}},
		renderer: r,
	}
}

func (w *world) options() SweepOptions {
	return SweepOptions{
		Prefs:    w.prefs,
		Contacts: w.contacts,
		Logs:     w.logs,
		Mailer:   w.mailer,
		Renderer: w.renderer,
		Now:      func() time.Time { return clock },
	}
}

func (w *world) volunteer(name, email string) uuid.UUID {
	id := uuid.New()
	w.contacts[id] = models.Contact{UserID: id, Name: name, Email: email, Source: models.ContactVolunteer}
	return id
}
