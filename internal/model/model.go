// Package model defines the core domain types for the campus events system.
package model

import (
	"strings"
	"time"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventSubmitted EventStatus = "submitted"
	EventApproved  EventStatus = "approved"
	EventRejected  EventStatus = "rejected"
	EventPublished EventStatus = "published"
	EventClosed    EventStatus = "closed"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventSubmitted, EventApproved, EventRejected, EventPublished, EventClosed:
		return true
	}
	return false
}

// Public reports whether events in this state are visible without ownership.
func (s EventStatus) Public() bool {
	return s == EventPublished || s == EventClosed
}

// Schedule is when an event takes place.
type Schedule struct {
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
	Timezone string     `json:"timezone,omitempty"`
}

// LocationKind distinguishes physical venues from online events.
type LocationKind string

const (
	LocationVenue  LocationKind = "venue"
	LocationOnline LocationKind = "online"
)

// Location is where an event takes place.
type Location struct {
	Kind    LocationKind `json:"type"`
	Address string       `json:"address,omitempty"`
	URL     string       `json:"url,omitempty"`
}

// Audit stamps each lifecycle transition.
type Audit struct {
	SubmittedAt  *time.Time `json:"submittedAt,omitempty"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy   string     `json:"approvedBy,omitempty"`
	RejectedAt   *time.Time `json:"rejectedAt,omitempty"`
	RejectReason string     `json:"rejectReason,omitempty"`
	PublishedAt  *time.Time `json:"publishedAt,omitempty"`
	ClosedAt     *time.Time `json:"closedAt,omitempty"`
}

// Event represents an event created by an organizer.
type Event struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Schedule       Schedule    `json:"schedule"`
	Location       Location    `json:"location"`
	TotalSlots     int         `json:"totalSlots"`
	RemainingSlots int         `json:"remainingSlots"`
	CreatedBy      string      `json:"createdBy"`
	Status         EventStatus `json:"status"`
	Audit          Audit       `json:"audit"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// IsFull returns true when no slots remain.
func (e *Event) IsFull() bool {
	return e.RemainingSlots <= 0
}

// RegistrationStatus is the state of a registration.
type RegistrationStatus string

const (
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// PaymentStatus is the state of the mock payment attached to a registration.
type PaymentStatus string

const (
	PaymentNone    PaymentStatus = "none"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Terminal reports whether no further webhook may change the status.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentFailed
}

// Payment is the payment sub-state of a registration.
type Payment struct {
	Status    PaymentStatus `json:"status"`
	Provider  string        `json:"provider,omitempty"`
	ChargeKey string        `json:"chargeId,omitempty"`
	Amount    int64         `json:"amount,omitempty"`
	Currency  string        `json:"currency,omitempty"`
}

// Registration represents a user's registration for an event.
type Registration struct {
	ID          string             `json:"id"`
	EventID     string             `json:"eventId"`
	UserID      string             `json:"userId"`
	Status      RegistrationStatus `json:"status"`
	Payment     Payment            `json:"payment"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	CancelledAt *time.Time         `json:"cancelledAt,omitempty"`
}

// Role is the closed set of user roles.
type Role string

const (
	RoleStudent   Role = "student"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleStudent, RoleOrganizer, RoleAdmin:
		return r, true
	}
	return "", false
}

// User is an account. PasswordHash is never serialized.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    string
	Email string
	Role  Role
}

// ChatKind distinguishes regular chat from organizer announcements.
type ChatKind string

const (
	ChatMessageKind  ChatKind = "message"
	ChatAnnouncement ChatKind = "announcement"
)

// ChatMessage is one append-only entry in an event's chat channel.
type ChatMessage struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	Kind      ChatKind  `json:"type"`
	Body      string    `json:"body"`
	Removed   bool      `json:"removed"`
	CreatedAt time.Time `json:"createdAt"`
}
