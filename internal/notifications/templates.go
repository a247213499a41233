package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names.
const (
	TemplateMessageNotification = "message_notification"
	TemplateRatingReminder      = "rating_reminder"
	TemplateWeeklyDigest        = "weekly_digest"
)

// Links builds the absolute URLs placed in emails.
type Links struct {
	BaseURL string
}

func (l Links) url(path string) string {
	return strings.TrimRight(l.BaseURL, "/") + path
}

// EventChat links to an event's chat.
func (l Links) EventChat(eventID string) string { return l.url("/events/" + eventID + "/chat") }

// EventRating links to an event's rating form.
func (l Links) EventRating(eventID string) string { return l.url("/events/" + eventID + "/rate") }

// Event links to an event page.
func (l Links) Event(eventID string) string { return l.url("/events/" + eventID) }

// Events links to the event listing.
func (l Links) Events() string { return l.url("/events") }

// Preferences links to the notification settings page.
func (l Links) Preferences() string { return l.url("/settings/notifications") }

// Layout carries the fields the shared layout reads. Template data structs embed it.
type Layout struct {
	Subject        string
	PreferencesURL string
}

func (l *Layout) setLayout(v Layout) { *l = v }

type layoutSetter interface {
	setLayout(Layout)
}

// MessageNotificationData feeds message_notification.html.
type MessageNotificationData struct {
	Layout
	RecipientName string
	EventTitle    string
	Count         int
	ChatURL       string
}

// RatingReminderData feeds rating_reminder.html.
type RatingReminderData struct {
	Layout
	RecipientName    string
	EventTitle       string
	OrganizationName string
	RateURL          string
}

// DigestEvent is one line of the weekly digest.
type DigestEvent struct {
	Title    string
	When     string
	Location string
	URL      string
}

// WeeklyDigestData feeds weekly_digest.html.
type WeeklyDigestData struct {
	Layout
	RecipientName string
	Events        []DigestEvent
	BrowseURL     string
}

// Renderer renders the embedded email templates inside the shared layout.
type Renderer struct {
	templates map[string]*template.Template
	links     Links
}

// NewRenderer parses every email template once.
func NewRenderer(links Links) (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template), links: links}
	for _, name := range []string{TemplateMessageNotification, TemplateRatingReminder, TemplateWeeklyDigest} {
		t, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Links returns the URL builder used for template data.
func (r *Renderer) Links() Links { return r.links }

// Render executes the named template with data and returns the HTML body.
func (r *Renderer) Render(name, subject string, data layoutSetter) (string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	data.setLayout(Layout{Subject: subject, PreferencesURL: r.links.Preferences()})
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
