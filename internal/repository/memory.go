package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/model"
)

// MemoryStore is a process-local EventStore, InviteStore and MembershipStore.
// It is concurrency-safe. Each event has its own lock for InEventTx, so
// transactions on different events never wait on each other.
type MemoryStore struct {
	mu      sync.RWMutex
	events  map[string]model.Event
	members map[string]map[string]model.Membership // eventID -> userID
	invites map[string]model.Invite                // inviteKey(eventID, userID)

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:  make(map[string]model.Event),
		members: make(map[string]map[string]model.Membership),
		invites: make(map[string]model.Invite),
		locks:   make(map[string]*sync.Mutex),
	}
}

func inviteKey(eventID, userID string) string {
	return eventID + "\x00" + userID
}

// Events returns the store's EventStore view.
func (s *MemoryStore) Events() EventStore { return memoryEvents{s} }

// Invites returns the store's InviteStore view.
func (s *MemoryStore) Invites() InviteStore { return memoryInvites{s} }

// Memberships returns the store's MembershipStore view.
func (s *MemoryStore) Memberships() MembershipStore { return memoryMemberships{s} }

func (s *MemoryStore) eventLock(eventID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[eventID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[eventID] = l
	}
	return l
}

// ─── events ──────────────────────────────────────────────────────────────────

type memoryEvents struct{ s *MemoryStore }

func (m memoryEvents) Create(_ context.Context, e *model.Event) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.events[e.ID]; ok {
		return fmt.Errorf("insert event: %w", ErrAlreadyExists)
	}
	m.s.events[e.ID] = *e
	return nil
}

func (m memoryEvents) GetByID(_ context.Context, id string) (*model.Event, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	e, ok := m.s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m memoryEvents) Update(_ context.Context, e *model.Event) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.events[e.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Title = e.Title
	cur.Description = e.Description
	cur.Location = e.Location
	cur.StartTime = e.StartTime
	cur.CutoffMinutes = e.CutoffMinutes
	cur.Visibility = e.Visibility
	cur.UpdatedAt = e.UpdatedAt
	m.s.events[e.ID] = cur
	return nil
}

// ─── invites ─────────────────────────────────────────────────────────────────

type memoryInvites struct{ s *MemoryStore }

func (m memoryInvites) Create(_ context.Context, inv *model.Invite) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := inviteKey(inv.EventID, inv.UserID)
	if _, ok := m.s.invites[key]; ok {
		return fmt.Errorf("insert invite: %w", ErrAlreadyExists)
	}
	m.s.invites[key] = *inv
	return nil
}

func (m memoryInvites) Get(_ context.Context, eventID, userID string) (*model.Invite, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	inv, ok := m.s.invites[inviteKey(eventID, userID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &inv, nil
}

func (m memoryInvites) UpdateStatus(_ context.Context, id string, status model.InviteStatus, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for key, inv := range m.s.invites {
		if inv.ID == id {
			inv.Status = status
			inv.UpdatedAt = at
			m.s.invites[key] = inv
			return nil
		}
	}
	return ErrNotFound
}

func (m memoryInvites) FindAccepted(ctx context.Context, eventID, userID string) (*model.Invite, error) {
	inv, err := m.Get(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if inv.Status != model.InviteAccepted {
		return nil, ErrNotFound
	}
	return inv, nil
}

// ─── memberships ─────────────────────────────────────────────────────────────

type memoryMemberships struct{ s *MemoryStore }

// InEventTx stages every write in a private copy of the event's memberships
// and swaps it in only after fn succeeds with a live context.
func (m memoryMemberships) InEventTx(ctx context.Context, eventID string, fn func(tx MembershipTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := m.s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	m.s.mu.RLock()
	event, ok := m.s.events[eventID]
	staged := make(map[string]model.Membership, len(m.s.members[eventID]))
	for k, v := range m.s.members[eventID] {
		staged[k] = v
	}
	m.s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	tx := &memoryTx{event: event, members: staged}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if tx.statusChanged {
		cur := m.s.events[eventID]
		cur.Status = tx.event.Status
		cur.UpdatedAt = tx.event.UpdatedAt
		m.s.events[eventID] = cur
	}
	m.s.members[eventID] = tx.members
	return nil
}

func (m memoryMemberships) Get(_ context.Context, eventID, userID string) (*model.Membership, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	mem, ok := m.s.members[eventID][userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &mem, nil
}

func (m memoryMemberships) ListByEvent(_ context.Context, eventID string) ([]model.Membership, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return sortedMemberships(m.s.members[eventID]), nil
}

// sortedMemberships mirrors the Postgres ordering: attendees by join time,
// then the waitlist by position.
func sortedMemberships(byUser map[string]model.Membership) []model.Membership {
	out := make([]model.Membership, 0, len(byUser))
	for _, v := range byUser {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.State != b.State {
			return a.State == model.StateAttending
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if a.JoinedAt != nil && b.JoinedAt != nil && !a.JoinedAt.Equal(*b.JoinedAt) {
			return a.JoinedAt.Before(*b.JoinedAt)
		}
		return a.UserID < b.UserID
	})
	return out
}

type memoryTx struct {
	event         model.Event
	members       map[string]model.Membership
	statusChanged bool
}

func (t *memoryTx) Event() *model.Event {
	e := t.event
	return &e
}

func (t *memoryTx) Memberships(_ context.Context) ([]model.Membership, error) {
	return sortedMemberships(t.members), nil
}

func (t *memoryTx) Insert(_ context.Context, m model.Membership) error {
	if _, ok := t.members[m.UserID]; ok {
		return fmt.Errorf("insert membership: %w", ErrAlreadyExists)
	}
	m.EventID = t.event.ID
	t.members[m.UserID] = m
	return nil
}

func (t *memoryTx) Update(_ context.Context, m model.Membership) error {
	if _, ok := t.members[m.UserID]; !ok {
		return ErrNotFound
	}
	m.EventID = t.event.ID
	t.members[m.UserID] = m
	return nil
}

func (t *memoryTx) Delete(_ context.Context, userID string) error {
	if _, ok := t.members[userID]; !ok {
		return ErrNotFound
	}
	delete(t.members, userID)
	return nil
}

func (t *memoryTx) SetEventStatus(_ context.Context, status model.EventStatus) error {
	t.event.Status = status
	t.event.UpdatedAt = time.Now().UTC()
	t.statusChanged = true
	return nil
}
