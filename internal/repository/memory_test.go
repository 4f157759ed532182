package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/model"
)

func seedEvent(t *testing.T, s *MemoryStore, id string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, s.Events().Create(context.Background(), &model.Event{
		ID:            id,
		Title:         "Pickup game",
		MaxSlots:      2,
		StartTime:     now.Add(48 * time.Hour),
		CutoffMinutes: model.DefaultCutoffMinutes,
		Visibility:    model.VisibilityPublic,
		HostID:        "host",
		Status:        model.EventPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))
}

func attending(user string) model.Membership {
	now := time.Now().UTC()
	return model.Membership{UserID: user, State: model.StateAttending, JoinedAt: &now}
}

func TestMemoryInEventTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedEvent(t, s, "evt")

	err := s.Memberships().InEventTx(ctx, "evt", func(tx MembershipTx) error {
		if err := tx.Insert(ctx, attending("a")); err != nil {
			return err
		}
		return tx.SetEventStatus(ctx, model.EventConfirmed)
	})
	require.NoError(t, err)

	m, err := s.Memberships().Get(ctx, "evt", "a")
	require.NoError(t, err)
	require.Equal(t, "evt", m.EventID)
	require.Equal(t, model.StateAttending, m.State)

	e, err := s.Events().GetByID(ctx, "evt")
	require.NoError(t, err)
	require.Equal(t, model.EventConfirmed, e.Status)
}

func TestMemoryInEventTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedEvent(t, s, "evt")
	boom := errors.New("boom")

	err := s.Memberships().InEventTx(ctx, "evt", func(tx MembershipTx) error {
		require.NoError(t, tx.Insert(ctx, attending("a")))
		require.NoError(t, tx.SetEventStatus(ctx, model.EventConfirmed))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Memberships().Get(ctx, "evt", "a")
	require.ErrorIs(t, err, ErrNotFound)
	e, err := s.Events().GetByID(ctx, "evt")
	require.NoError(t, err)
	require.Equal(t, model.EventPending, e.Status)
}

func TestMemoryInEventTxCancelledContextWritesNothing(t *testing.T) {
	s := NewMemoryStore()
	seedEvent(t, s, "evt")
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Memberships().InEventTx(ctx, "evt", func(tx MembershipTx) error {
		require.NoError(t, tx.Insert(ctx, attending("a")))
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	list, err := s.Memberships().ListByEvent(context.Background(), "evt")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestMemoryInEventTxUnknownEvent(t *testing.T) {
	s := NewMemoryStore()
	err := s.Memberships().InEventTx(context.Background(), "missing", func(MembershipTx) error {
		t.Fatal("body must not run")
		return nil
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryInsertDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedEvent(t, s, "evt")

	err := s.Memberships().InEventTx(ctx, "evt", func(tx MembershipTx) error {
		require.NoError(t, tx.Insert(ctx, attending("a")))
		return tx.Insert(ctx, attending("a"))
	})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMemoryListOrdersAttendeesBeforeWaitlist(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedEvent(t, s, "evt")
	at := time.Now().UTC()

	err := s.Memberships().InEventTx(ctx, "evt", func(tx MembershipTx) error {
		for _, m := range []model.Membership{
			{UserID: "w2", State: model.StateWaitlisted, WaitlistedAt: &at, Position: 2},
			attending("a"),
			{UserID: "w1", State: model.StateWaitlisted, WaitlistedAt: &at, Position: 1},
		} {
			if err := tx.Insert(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	list, err := s.Memberships().ListByEvent(ctx, "evt")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "a", list[0].UserID)
	require.Equal(t, "w1", list[1].UserID)
	require.Equal(t, "w2", list[2].UserID)

	att, wl := SplitByState(list)
	require.Len(t, att, 1)
	require.Len(t, wl, 2)
}

func TestMemoryEventUpdateKeepsStatusAndCapacity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedEvent(t, s, "evt")

	e, err := s.Events().GetByID(ctx, "evt")
	require.NoError(t, err)
	e.Title = "Renamed"
	e.MaxSlots = 99
	e.Status = model.EventCancelled
	require.NoError(t, s.Events().Update(ctx, e))

	got, err := s.Events().GetByID(ctx, "evt")
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Title)
	require.Equal(t, 2, got.MaxSlots)
	require.Equal(t, model.EventPending, got.Status)
}

func TestMemoryInvites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	inv := &model.Invite{ID: "inv-1", EventID: "evt", UserID: "u", Status: model.InvitePending}
	require.NoError(t, s.Invites().Create(ctx, inv))
	require.ErrorIs(t, s.Invites().Create(ctx, inv), ErrAlreadyExists)

	_, err := s.Invites().FindAccepted(ctx, "evt", "u")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Invites().UpdateStatus(ctx, "inv-1", model.InviteAccepted, time.Now()))
	got, err := s.Invites().FindAccepted(ctx, "evt", "u")
	require.NoError(t, err)
	require.Equal(t, model.InviteAccepted, got.Status)

	require.ErrorIs(t, s.Invites().UpdateStatus(ctx, "nope", model.InviteAccepted, time.Now()), ErrNotFound)
}
