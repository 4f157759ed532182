// Package model defines the core domain types for the seat allocator.
package model

import "time"

// DefaultCutoffMinutes is the registration lead time applied when an event
// does not set one.
const DefaultCutoffMinutes = 30

// Visibility controls who may claim a seat on an event.
type Visibility string

const (
	VisibilityPublic     Visibility = "public"
	VisibilityInviteOnly Visibility = "invite-only"
)

// EventStatus is the event-level lifecycle flag.
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventConfirmed EventStatus = "confirmed"
	EventCancelled EventStatus = "cancelled"
)

// Event represents a capacity-limited activity created by a host.
type Event struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	Location      string      `json:"location"`
	MaxSlots      int         `json:"max_slots"`
	StartTime     time.Time   `json:"start_time"`
	CutoffMinutes int         `json:"cutoff_minutes"`
	Visibility    Visibility  `json:"visibility"`
	HostID        string      `json:"host_id"`
	Status        EventStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// RegistrationCutoff returns the instant after which new claims are rejected.
func (e *Event) RegistrationCutoff() time.Time {
	return e.StartTime.Add(-time.Duration(e.CutoffMinutes) * time.Minute)
}

// RegistrationOpen reports whether a claim made at now is still accepted.
func (e *Event) RegistrationOpen(now time.Time) bool {
	return e.Status != EventCancelled && now.Before(e.RegistrationCutoff())
}

// MembershipState is a user's relationship to an event.
type MembershipState string

const (
	StateAttending  MembershipState = "attending"
	StateWaitlisted MembershipState = "waitlisted"
)

// Membership is one user's seat or waitlist slot on one event.
// Position and WaitlistedAt are set only while State is StateWaitlisted;
// JoinedAt only while State is StateAttending.
type Membership struct {
	EventID      string          `json:"event_id"`
	UserID       string          `json:"user_id"`
	State        MembershipState `json:"state"`
	JoinedAt     *time.Time      `json:"joined_at,omitempty"`
	WaitlistedAt *time.Time      `json:"waitlisted_at,omitempty"`
	Position     int             `json:"position,omitempty"`
}

// InviteStatus is the lifecycle of an invite.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

// Invite grants a user access to an invite-only event once accepted.
type Invite struct {
	ID        string       `json:"id"`
	EventID   string       `json:"event_id"`
	UserID    string       `json:"user_id"`
	Status    InviteStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ClaimStatus is the per-seat outcome of a claim, independent of the
// event-level status.
type ClaimStatus string

const (
	ClaimConfirmed ClaimStatus = "confirmed"
	ClaimWaitlist  ClaimStatus = "waitlist"
)

// ClaimResult is returned by a successful claim.
type ClaimResult struct {
	Status   ClaimStatus `json:"status"`
	Position int         `json:"position,omitempty"`
}

// ReleaseResult is returned by a successful release.
type ReleaseResult struct {
	Success  bool   `json:"success"`
	Promoted string `json:"promoted,omitempty"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title         string     `json:"title" validate:"required,max=200"`
	Description   string     `json:"description" validate:"max=4000"`
	Location      string     `json:"location" validate:"required,max=200"`
	MaxSlots      int        `json:"max_slots" validate:"required,gt=0,lte=100000"`
	StartTime     time.Time  `json:"start_time" validate:"required"`
	CutoffMinutes *int       `json:"cutoff_minutes" validate:"omitempty,gte=0"`
	Visibility    Visibility `json:"visibility" validate:"omitempty,oneof=public invite-only"`
}

// UpdateEventRequest carries the mutable event fields. Nil fields are left
// untouched; capacity cannot be changed after creation.
type UpdateEventRequest struct {
	Title         *string     `json:"title" validate:"omitempty,min=1,max=200"`
	Description   *string     `json:"description" validate:"omitempty,max=4000"`
	Location      *string     `json:"location" validate:"omitempty,min=1,max=200"`
	StartTime     *time.Time  `json:"start_time"`
	CutoffMinutes *int        `json:"cutoff_minutes" validate:"omitempty,gte=0"`
	Visibility    *Visibility `json:"visibility" validate:"omitempty,oneof=public invite-only"`
}

// CreateInviteRequest is the payload a host sends to invite a user.
type CreateInviteRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

// EventView is an event with its current occupancy.
type EventView struct {
	Event
	AttendeeCount int `json:"attendee_count"`
	WaitlistCount int `json:"waitlist_count"`
}

// Roster lists an event's attendees and its ordered waitlist.
type Roster struct {
	Attending []Membership `json:"attending"`
	Waitlist  []Membership `json:"waitlist"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
