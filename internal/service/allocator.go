package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/metrics"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/repository"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/waitlist"
)

const (
	defaultMaxAttempts  = 5
	defaultRetryBackoff = 20 * time.Millisecond
)

// SeatAllocator assigns confirmed seats and waitlist slots on
// capacity-limited events, and promotes from the waitlist when a seat is
// released.
type SeatAllocator struct {
	events  repository.EventStore
	invites repository.InviteStore
	tx      *txRunner
	clock   func() time.Time
	logger  *zap.Logger
}

// Option configures a SeatAllocator or EventService.
type Option func(*options)

type options struct {
	clock        func() time.Time
	logger       *zap.Logger
	maxAttempts  int
	retryBackoff time.Duration
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRetry sets how many times a conflicting transaction is attempted and
// the base backoff between attempts.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(o *options) {
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			o.retryBackoff = backoff
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:        func() time.Time { return time.Now().UTC() },
		logger:       zap.NewNop(),
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewSeatAllocator constructs a SeatAllocator with its dependencies.
func NewSeatAllocator(
	events repository.EventStore,
	invites repository.InviteStore,
	members repository.MembershipStore,
	opts ...Option,
) *SeatAllocator {
	o := buildOptions(opts)
	logger := o.logger.Named("allocator")
	return &SeatAllocator{
		events:  events,
		invites: invites,
		tx: &txRunner{
			members:     members,
			maxAttempts: o.maxAttempts,
			backoff:     o.retryBackoff,
			logger:      logger,
		},
		clock:  o.clock,
		logger: logger,
	}
}

// Gate runs after the read-only checks of Claim or Release pass and before
// anything is written. A non-nil error aborts the call and is returned as is.
type Gate func(ctx context.Context) error

func runGates(ctx context.Context, gates []Gate) error {
	for _, g := range gates {
		if err := g(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Claim gives userID a confirmed seat on eventID if one is free, otherwise
// the next waitlist position. gates only see claims that would write.
func (a *SeatAllocator) Claim(ctx context.Context, eventID, userID string, gates ...Gate) (*model.ClaimResult, error) {
	res, err := a.claim(ctx, eventID, userID, gates)
	if err != nil {
		metrics.Claims.WithLabelValues(Kind(err)).Inc()
		return nil, err
	}
	metrics.Claims.WithLabelValues(string(res.Status)).Inc()
	return res, nil
}

func (a *SeatAllocator) claim(ctx context.Context, eventID, userID string, gates []Gate) (*model.ClaimResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, invalidArgument("event id is required")
	}

	// ── Pre-checks: nothing is written if any of these fail. ──────────────
	event, err := a.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.RegistrationOpen(a.clock()) {
		return nil, ErrRegistrationClosed
	}
	if err := a.checkAccess(ctx, event, userID); err != nil {
		return nil, err
	}
	if _, err := a.tx.members.Get(ctx, eventID, userID); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if err := runGates(ctx, gates); err != nil {
		return nil, err
	}

	// ── Transactional step: re-read capacity under the event lock. ────────
	var result model.ClaimResult
	err = a.tx.run(ctx, "claim", eventID, func(tx repository.MembershipTx) error {
		ev := tx.Event()
		now := a.clock()
		if !ev.RegistrationOpen(now) {
			return ErrRegistrationClosed
		}

		all, err := tx.Memberships(ctx)
		if err != nil {
			return err
		}
		for _, m := range all {
			if m.UserID == userID {
				return ErrAlreadyExists
			}
		}
		attending, waitlisted := repository.SplitByState(all)

		if len(attending) < ev.MaxSlots {
			if err := tx.Insert(ctx, model.Membership{
				EventID:  eventID,
				UserID:   userID,
				State:    model.StateAttending,
				JoinedAt: &now,
			}); err != nil {
				return err
			}
			if err := syncStatus(ctx, tx, len(attending)+1); err != nil {
				return err
			}
			result = model.ClaimResult{Status: model.ClaimConfirmed}
			return nil
		}

		list := waitlist.Append(waitlisted, model.Membership{
			EventID:      eventID,
			UserID:       userID,
			State:        model.StateWaitlisted,
			WaitlistedAt: &now,
		})
		tail := list[len(list)-1]
		if err := persistPositions(ctx, tx, waitlisted, list[:len(list)-1]); err != nil {
			return err
		}
		if err := tx.Insert(ctx, tail); err != nil {
			return err
		}
		result = model.ClaimResult{Status: model.ClaimWaitlist, Position: tail.Position}
		return nil
	})
	if err != nil {
		return nil, a.translate(err, "claim seat")
	}

	a.logger.Info("seat claimed",
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
		zap.String("status", string(result.Status)),
		zap.Int("position", result.Position),
	)
	return &result, nil
}

// Release removes userID's seat or waitlist slot on eventID. A freed seat
// goes to the waitlist head. Cancellation is allowed after the cutoff.
func (a *SeatAllocator) Release(ctx context.Context, eventID, userID string, gates ...Gate) (*model.ReleaseResult, error) {
	res, err := a.release(ctx, eventID, userID, gates)
	if err != nil {
		metrics.Releases.WithLabelValues(Kind(err)).Inc()
		return nil, err
	}
	if res.Promoted != "" {
		metrics.Releases.WithLabelValues("promoted").Inc()
	} else {
		metrics.Releases.WithLabelValues("released").Inc()
	}
	return res, nil
}

func (a *SeatAllocator) release(ctx context.Context, eventID, userID string, gates []Gate) (*model.ReleaseResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, invalidArgument("event id is required")
	}
	if _, err := a.getEvent(ctx, eventID); err != nil {
		return nil, err
	}
	if _, err := a.tx.members.Get(ctx, eventID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if err := runGates(ctx, gates); err != nil {
		return nil, err
	}

	var result model.ReleaseResult
	err := a.tx.run(ctx, "release", eventID, func(tx repository.MembershipTx) error {
		all, err := tx.Memberships(ctx)
		if err != nil {
			return err
		}
		var mine *model.Membership
		for i := range all {
			if all[i].UserID == userID {
				mine = &all[i]
				break
			}
		}
		if mine == nil {
			return ErrMembershipNotFound
		}
		attending, waitlisted := repository.SplitByState(all)

		if err := tx.Delete(ctx, userID); err != nil {
			return err
		}

		if mine.State == model.StateWaitlisted {
			rest, _ := waitlist.Remove(waitlisted, userID)
			if err := persistPositions(ctx, tx, waitlisted, rest); err != nil {
				return err
			}
			result = model.ReleaseResult{Success: true}
			return nil
		}

		remaining := len(attending) - 1
		head, rest, ok := waitlist.PopFront(waitlisted)
		if !ok || remaining >= tx.Event().MaxSlots {
			if err := syncStatus(ctx, tx, remaining); err != nil {
				return err
			}
			result = model.ReleaseResult{Success: true}
			return nil
		}

		now := a.clock()
		head.State = model.StateAttending
		head.JoinedAt = &now
		head.WaitlistedAt = nil
		head.Position = 0
		if err := tx.Update(ctx, head); err != nil {
			return err
		}
		if err := persistPositions(ctx, tx, waitlisted, rest); err != nil {
			return err
		}
		if err := syncStatus(ctx, tx, remaining+1); err != nil {
			return err
		}
		result = model.ReleaseResult{Success: true, Promoted: head.UserID}
		return nil
	})
	if err != nil {
		return nil, a.translate(err, "release seat")
	}

	fields := []zap.Field{zap.String("event_id", eventID), zap.String("user_id", userID)}
	if result.Promoted != "" {
		fields = append(fields, zap.String("promoted", result.Promoted))
	}
	a.logger.Info("seat released", fields...)
	return &result, nil
}

func (a *SeatAllocator) getEvent(ctx context.Context, eventID string) (*model.Event, error) {
	event, err := a.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// checkAccess enforces invite-only visibility. The host always has access.
func (a *SeatAllocator) checkAccess(ctx context.Context, event *model.Event, userID string) error {
	if event.Visibility != model.VisibilityInviteOnly || event.HostID == userID {
		return nil
	}
	if _, err := a.invites.FindAccepted(ctx, event.ID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: event is invite-only", ErrPermissionDenied)
		}
		return fmt.Errorf("find invite: %w", err)
	}
	return nil
}

// translate maps repository sentinels escaping a transaction onto service
// kinds. Service kinds pass through unchanged.
func (a *SeatAllocator) translate(err error, op string) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRegistrationClosed),
		errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return ErrEventNotFound
	case errors.Is(err, repository.ErrAlreadyExists):
		return ErrAlreadyExists
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// persistPositions writes every entry of after whose position differs from
// its position in before. Entries absent from before are left to the caller.
func persistPositions(ctx context.Context, tx repository.MembershipTx, before, after []model.Membership) error {
	prev := make(map[string]int, len(before))
	for _, m := range before {
		prev[m.UserID] = m.Position
	}
	for _, m := range after {
		p, ok := prev[m.UserID]
		if !ok || p == m.Position {
			continue
		}
		if err := tx.Update(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// syncStatus keeps the event status in step with occupancy: confirmed while
// full, pending while seats are open. Cancelled events are left alone.
func syncStatus(ctx context.Context, tx repository.MembershipTx, attending int) error {
	ev := tx.Event()
	var want model.EventStatus
	switch {
	case ev.Status == model.EventCancelled:
		return nil
	case attending >= ev.MaxSlots:
		want = model.EventConfirmed
	default:
		want = model.EventPending
	}
	if ev.Status == want {
		return nil
	}
	return tx.SetEventStatus(ctx, want)
}

// txRunner reruns a membership transaction when it loses a race, up to a
// fixed budget.
type txRunner struct {
	members     repository.MembershipStore
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

func (r *txRunner) run(ctx context.Context, op, eventID string, fn func(tx repository.MembershipTx) error) error {
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = r.members.InEventTx(ctx, eventID, fn)
		if !errors.Is(err, repository.ErrTxConflict) {
			return err
		}
		metrics.TxRetries.WithLabelValues(op).Inc()
		r.logger.Debug("transaction conflict",
			zap.String("op", op),
			zap.String("event_id", eventID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == r.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff * time.Duration(attempt)):
		}
	}
	r.logger.Warn("transaction retry budget exhausted",
		zap.String("op", op),
		zap.String("event_id", eventID),
		zap.Int("attempts", r.maxAttempts),
	)
	return fmt.Errorf("%w (%d attempts): %v", ErrConflict, r.maxAttempts, err)
}
