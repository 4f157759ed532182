// Package repository implements persistence for events, invites and seat
// memberships. Postgres is accessed through pgx directly; an in-memory
// backend with the same transactional contract is provided for local runs
// and tests.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when a unique key (event+user) is taken.
var ErrAlreadyExists = errors.New("already exists")

// ErrTxConflict is returned when a transaction lost a race with a concurrent
// writer and may succeed if run again.
var ErrTxConflict = errors.New("transaction conflict")

// EventStore persists events.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	// Update writes the descriptive fields of e. Status and capacity are
	// never written here; status changes go through MembershipTx.
	Update(ctx context.Context, e *model.Event) error
}

// InviteStore persists invites to invite-only events.
type InviteStore interface {
	Create(ctx context.Context, inv *model.Invite) error
	Get(ctx context.Context, eventID, userID string) (*model.Invite, error)
	UpdateStatus(ctx context.Context, id string, status model.InviteStatus, at time.Time) error
	FindAccepted(ctx context.Context, eventID, userID string) (*model.Invite, error)
}

// MembershipStore gives transactional access to an event's attendee and
// waitlist rows.
type MembershipStore interface {
	// InEventTx locks eventID and runs fn. Writes made through tx are
	// committed only if fn returns nil and ctx is still live; otherwise
	// nothing is persisted. Returns ErrNotFound if the event does not exist.
	InEventTx(ctx context.Context, eventID string, fn func(tx MembershipTx) error) error
	Get(ctx context.Context, eventID, userID string) (*model.Membership, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Membership, error)
}

// MembershipTx is the view of one locked event inside InEventTx.
type MembershipTx interface {
	// Event is the event row as read under the lock.
	Event() *model.Event
	// Memberships returns every membership of the event.
	Memberships(ctx context.Context) ([]model.Membership, error)
	Insert(ctx context.Context, m model.Membership) error
	Update(ctx context.Context, m model.Membership) error
	Delete(ctx context.Context, userID string) error
	SetEventStatus(ctx context.Context, status model.EventStatus) error
}

// SplitByState partitions memberships into attendees and waitlisted entries.
func SplitByState(all []model.Membership) (attending, waitlisted []model.Membership) {
	for _, m := range all {
		switch m.State {
		case model.StateAttending:
			attending = append(attending, m)
		case model.StateWaitlisted:
			waitlisted = append(waitlisted, m)
		}
	}
	return attending, waitlisted
}
