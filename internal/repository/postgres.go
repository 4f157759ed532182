package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/model"
)

// Postgres SQLSTATE codes the repository reacts to.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// translatePgError maps driver errors onto repository sentinels.
func translatePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrAlreadyExists, pgErr.ConstraintName)
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %s", ErrTxConflict, pgErr.Message)
		}
	}
	return err
}

const eventColumns = `id, title, description, location, max_slots, start_time,
	cutoff_minutes, visibility, host_id, status, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.MaxSlots, &e.StartTime,
		&e.CutoffMinutes, &e.Visibility, &e.HostID, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Title, e.Description, e.Location, e.MaxSlots, e.StartTime,
		e.CutoffMinutes, e.Visibility, e.HostID, e.Status, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", translatePgError(err))
	}
	return nil
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// Update writes the descriptive fields of an event.
func (r *EventRepository) Update(ctx context.Context, e *model.Event) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events
		 SET title = $2, description = $3, location = $4, start_time = $5,
		     cutoff_minutes = $6, visibility = $7, updated_at = $8
		 WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Location, e.StartTime,
		e.CutoffMinutes, e.Visibility, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", translatePgError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InviteRepository handles persistence for invites.
type InviteRepository struct {
	db *pgxpool.Pool
}

// NewInviteRepository constructs an InviteRepository.
func NewInviteRepository(db *pgxpool.Pool) *InviteRepository {
	return &InviteRepository{db: db}
}

const inviteColumns = `id, event_id, user_id, status, created_at, updated_at`

func scanInvite(row pgx.Row) (*model.Invite, error) {
	var inv model.Invite
	if err := row.Scan(&inv.ID, &inv.EventID, &inv.UserID, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Create inserts an invite. A second invite for the same (event, user)
// yields ErrAlreadyExists.
func (r *InviteRepository) Create(ctx context.Context, inv *model.Invite) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO invites (`+inviteColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		inv.ID, inv.EventID, inv.UserID, inv.Status, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invite: %w", translatePgError(err))
	}
	return nil
}

// Get returns the invite for (eventID, userID) in any status.
func (r *InviteRepository) Get(ctx context.Context, eventID, userID string) (*model.Invite, error) {
	inv, err := scanInvite(r.db.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE event_id = $1 AND user_id = $2`,
		eventID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

// UpdateStatus moves an invite to status.
func (r *InviteRepository) UpdateStatus(ctx context.Context, id string, status model.InviteStatus, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invites SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, at)
	if err != nil {
		return fmt.Errorf("update invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindAccepted returns the accepted invite for (eventID, userID) or ErrNotFound.
func (r *InviteRepository) FindAccepted(ctx context.Context, eventID, userID string) (*model.Invite, error) {
	inv, err := scanInvite(r.db.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM invites
		 WHERE event_id = $1 AND user_id = $2 AND status = $3`,
		eventID, userID, model.InviteAccepted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find accepted invite: %w", err)
	}
	return inv, nil
}

// MembershipRepository handles persistence for attendee and waitlist rows.
type MembershipRepository struct {
	db *pgxpool.Pool
}

// NewMembershipRepository constructs a MembershipRepository.
func NewMembershipRepository(db *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{db: db}
}

const membershipColumns = `event_id, user_id, state, joined_at, waitlisted_at, position`

func scanMembership(row pgx.Row) (model.Membership, error) {
	var (
		m   model.Membership
		pos *int
	)
	if err := row.Scan(&m.EventID, &m.UserID, &m.State, &m.JoinedAt, &m.WaitlistedAt, &pos); err != nil {
		return model.Membership{}, err
	}
	if pos != nil {
		m.Position = *pos
	}
	return m, nil
}

func nullablePosition(m model.Membership) *int {
	if m.State != model.StateWaitlisted {
		return nil
	}
	p := m.Position
	return &p
}

// InEventTx serialises all membership mutations for one event.
//
// The event row is locked with SELECT … FOR UPDATE as the first statement.
// Any concurrent InEventTx for the same event blocks on that lock until this
// transaction commits or rolls back, so the attendee count read inside fn
// cannot go stale before the insert that depends on it. Other events are
// unaffected because the lock is per row.
//
// Serialization failures and deadlocks surface as ErrTxConflict so the
// caller can rerun the body.
func (r *MembershipRepository) InEventTx(ctx context.Context, eventID string, fn func(tx MembershipTx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", translatePgError(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	event, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock event row: %w", translatePgError(err))
	}

	if err = fn(&pgMembershipTx{tx: tx, event: event}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", translatePgError(err))
	}
	return nil
}

// Get returns one membership or ErrNotFound.
func (r *MembershipRepository) Get(ctx context.Context, eventID, userID string) (*model.Membership, error) {
	m, err := scanMembership(r.db.QueryRow(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE event_id = $1 AND user_id = $2`,
		eventID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return &m, nil
}

// ListByEvent returns attendees by join time followed by the waitlist by position.
func (r *MembershipRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Membership, error) {
	return listMemberships(ctx, r.db, eventID)
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listMemberships(ctx context.Context, q queryer, eventID string) ([]model.Membership, error) {
	rows, err := q.Query(ctx,
		`SELECT `+membershipColumns+`
		 FROM memberships
		 WHERE event_id = $1
		 ORDER BY state ASC, position ASC NULLS FIRST, joined_at ASC, user_id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", translatePgError(err))
	}
	defer rows.Close()

	var out []model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePgError(err)
	}
	return out, nil
}

type pgMembershipTx struct {
	tx    pgx.Tx
	event *model.Event
}

func (t *pgMembershipTx) Event() *model.Event {
	e := *t.event
	return &e
}

func (t *pgMembershipTx) Memberships(ctx context.Context) ([]model.Membership, error) {
	return listMemberships(ctx, t.tx, t.event.ID)
}

func (t *pgMembershipTx) Insert(ctx context.Context, m model.Membership) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO memberships (`+membershipColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.event.ID, m.UserID, m.State, m.JoinedAt, m.WaitlistedAt, nullablePosition(m),
	)
	if err != nil {
		return fmt.Errorf("insert membership: %w", translatePgError(err))
	}
	return nil
}

func (t *pgMembershipTx) Update(ctx context.Context, m model.Membership) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE memberships
		 SET state = $3, joined_at = $4, waitlisted_at = $5, position = $6
		 WHERE event_id = $1 AND user_id = $2`,
		t.event.ID, m.UserID, m.State, m.JoinedAt, m.WaitlistedAt, nullablePosition(m),
	)
	if err != nil {
		return fmt.Errorf("update membership: %w", translatePgError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgMembershipTx) Delete(ctx context.Context, userID string) error {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM memberships WHERE event_id = $1 AND user_id = $2`,
		t.event.ID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", translatePgError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgMembershipTx) SetEventStatus(ctx context.Context, status model.EventStatus) error {
	now := time.Now().UTC()
	_, err := t.tx.Exec(ctx,
		`UPDATE events SET status = $2, updated_at = $3 WHERE id = $1`,
		t.event.ID, status, now)
	if err != nil {
		return fmt.Errorf("update event status: %w", translatePgError(err))
	}
	t.event.Status = status
	t.event.UpdatedAt = now
	return nil
}
