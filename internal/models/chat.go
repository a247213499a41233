package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthorType distinguishes synthesized messages from human-authored ones.
type AuthorType string

const (
	AuthorSystem AuthorType = "SYSTEM"
	AuthorUser   AuthorType = "USER"
)

// MessageKind is the kind of a chat message.
type MessageKind string

const (
	KindMessage      MessageKind = "MESSAGE"
	KindAnnouncement MessageKind = "ANNOUNCEMENT"
)

// GroupChat is the per-event chat channel.
type GroupChat struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is an immutable entry of a group chat. Seq breaks ties between equal timestamps.
type ChatMessage struct {
	ID         uuid.UUID   `json:"id"`
	Seq        int64       `json:"-"`
	ChatID     uuid.UUID   `json:"chat_id"`
	EventID    uuid.UUID   `json:"event_id"`
	AuthorID   *uuid.UUID  `json:"author_id,omitempty"`
	AuthorType AuthorType  `json:"author_type"`
	Kind       MessageKind `json:"kind"`
	Body       string      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

// AuthorDisplay is best-effort display info for a message author.
type AuthorDisplay struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	// Source is ContactVolunteer or ContactOrganizationMember.
	Source string `json:"source"`
	// OrganizationName is set for organization members.
	OrganizationName string `json:"organization_name,omitempty"`
}

// ChatMessageView is a message decorated with author display info.
type ChatMessageView struct {
	ChatMessage
	Author *AuthorDisplay `json:"author,omitempty"`
}
