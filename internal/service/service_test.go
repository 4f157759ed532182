package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/repository"
)

func newEventService(t *testing.T) (*EventService, *SeatAllocator, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := WithClock(func() time.Time { return testNow })
	svc := NewEventService(store.Events(), store.Invites(), store.Memberships(), clock)
	alloc := NewSeatAllocator(store.Events(), store.Invites(), store.Memberships(), clock)
	return svc, alloc, store
}

func validCreate() model.CreateEventRequest {
	return model.CreateEventRequest{
		Title:     "  Five-a-side  ",
		Location:  "Pitch 3",
		MaxSlots:  10,
		StartTime: testNow.Add(72 * time.Hour),
	}
}

func TestCreateEventDefaults(t *testing.T) {
	svc, _, _ := newEventService(t)

	e, err := svc.CreateEvent(context.Background(), "host", validCreate())
	require.NoError(t, err)
	require.NotEmpty(t, e.ID)
	require.Equal(t, "Five-a-side", e.Title)
	require.Equal(t, model.DefaultCutoffMinutes, e.CutoffMinutes)
	require.Equal(t, model.VisibilityPublic, e.Visibility)
	require.Equal(t, model.EventPending, e.Status)
	require.Equal(t, "host", e.HostID)
	require.Equal(t, testNow, e.CreatedAt)

	view, err := svc.GetEvent(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, e.ID, view.ID)
	require.Zero(t, view.AttendeeCount)
}

func TestCreateEventValidation(t *testing.T) {
	svc, _, _ := newEventService(t)
	negative := -5

	tests := []struct {
		name   string
		mutate func(*model.CreateEventRequest)
	}{
		{"blank title", func(r *model.CreateEventRequest) { r.Title = "   " }},
		{"no location", func(r *model.CreateEventRequest) { r.Location = "" }},
		{"zero slots", func(r *model.CreateEventRequest) { r.MaxSlots = 0 }},
		{"too many slots", func(r *model.CreateEventRequest) { r.MaxSlots = 100_001 }},
		{"no start", func(r *model.CreateEventRequest) { r.StartTime = time.Time{} }},
		{"negative cutoff", func(r *model.CreateEventRequest) { r.CutoffMinutes = &negative }},
		{"bad visibility", func(r *model.CreateEventRequest) { r.Visibility = "friends" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate()
			tt.mutate(&req)
			_, err := svc.CreateEvent(context.Background(), "host", req)
			require.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	_, err := svc.CreateEvent(context.Background(), "", validCreate())
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUpdateEventHostOnly(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newEventService(t)
	e, err := svc.CreateEvent(ctx, "host", validCreate())
	require.NoError(t, err)

	title := "Seven-a-side"
	_, err = svc.UpdateEvent(ctx, "intruder", e.ID, model.UpdateEventRequest{Title: &title})
	require.ErrorIs(t, err, ErrPermissionDenied)

	cutoff := 60
	vis := model.VisibilityInviteOnly
	updated, err := svc.UpdateEvent(ctx, "host", e.ID, model.UpdateEventRequest{
		Title:         &title,
		CutoffMinutes: &cutoff,
		Visibility:    &vis,
	})
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)
	require.Equal(t, 60, updated.CutoffMinutes)
	require.Equal(t, model.VisibilityInviteOnly, updated.Visibility)
	require.Equal(t, 10, updated.MaxSlots)

	_, err = svc.UpdateEvent(ctx, "host", "missing", model.UpdateEventRequest{Title: &title})
	require.ErrorIs(t, err, ErrEventNotFound)

	empty := ""
	_, err = svc.UpdateEvent(ctx, "host", e.ID, model.UpdateEventRequest{Title: &empty})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCancelEventClosesRegistration(t *testing.T) {
	ctx := context.Background()
	svc, alloc, _ := newEventService(t)
	e, err := svc.CreateEvent(ctx, "host", validCreate())
	require.NoError(t, err)

	_, err = alloc.Claim(ctx, e.ID, "a")
	require.NoError(t, err)

	require.ErrorIs(t, svc.CancelEvent(ctx, "a", e.ID), ErrPermissionDenied)
	require.NoError(t, svc.CancelEvent(ctx, "host", e.ID))
	require.NoError(t, svc.CancelEvent(ctx, "host", e.ID), "cancelling twice is harmless")

	view, err := svc.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, model.EventCancelled, view.Status)
	require.Equal(t, 1, view.AttendeeCount)

	_, err = alloc.Claim(ctx, e.ID, "b")
	require.ErrorIs(t, err, ErrRegistrationClosed)

	_, err = alloc.Release(ctx, e.ID, "a")
	require.NoError(t, err, "leaving a cancelled event is allowed")
}

func TestRosterOrdersWaitlist(t *testing.T) {
	ctx := context.Background()
	svc, alloc, _ := newEventService(t)
	req := validCreate()
	req.MaxSlots = 1
	e, err := svc.CreateEvent(ctx, "host", req)
	require.NoError(t, err)

	empty, err := svc.Roster(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, empty.Attending)
	require.NotNil(t, empty.Waitlist)

	for _, u := range []string{"a", "b", "c"} {
		_, err := alloc.Claim(ctx, e.ID, u)
		require.NoError(t, err)
	}

	roster, err := svc.Roster(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, roster.Attending, 1)
	require.Equal(t, []string{"b", "c"}, waitlistUsers(roster.Waitlist))

	view, err := svc.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, 1, view.AttendeeCount)
	require.Equal(t, 2, view.WaitlistCount)

	_, err = svc.Roster(ctx, "missing")
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestInviteFlowUnlocksClaim(t *testing.T) {
	ctx := context.Background()
	svc, alloc, _ := newEventService(t)
	req := validCreate()
	req.Visibility = model.VisibilityInviteOnly
	e, err := svc.CreateEvent(ctx, "host", req)
	require.NoError(t, err)

	_, err = alloc.Claim(ctx, e.ID, "guest")
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Invite(ctx, "guest", e.ID, model.CreateInviteRequest{UserID: "other"})
	require.ErrorIs(t, err, ErrPermissionDenied, "only the host invites")
	_, err = svc.Invite(ctx, "host", e.ID, model.CreateInviteRequest{UserID: "host"})
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = svc.Invite(ctx, "host", e.ID, model.CreateInviteRequest{UserID: ""})
	require.ErrorIs(t, err, ErrInvalidArgument)

	inv, err := svc.Invite(ctx, "host", e.ID, model.CreateInviteRequest{UserID: "guest"})
	require.NoError(t, err)
	require.Equal(t, model.InvitePending, inv.Status)

	_, err = svc.Invite(ctx, "host", e.ID, model.CreateInviteRequest{UserID: "guest"})
	require.ErrorIs(t, err, ErrAlreadyExists)

	_, err = alloc.Claim(ctx, e.ID, "guest")
	require.ErrorIs(t, err, ErrPermissionDenied, "invite not yet accepted")

	_, err = svc.AcceptInvite(ctx, "stranger", e.ID)
	require.ErrorIs(t, err, ErrInviteNotFound)

	accepted, err := svc.AcceptInvite(ctx, "guest", e.ID)
	require.NoError(t, err)
	require.Equal(t, model.InviteAccepted, accepted.Status)

	again, err := svc.AcceptInvite(ctx, "guest", e.ID)
	require.NoError(t, err)
	require.Equal(t, inv.ID, again.ID)

	res, err := alloc.Claim(ctx, e.ID, "guest")
	require.NoError(t, err)
	require.Equal(t, model.ClaimConfirmed, res.Status)
}

func TestKind(t *testing.T) {
	require.Equal(t, "not_found", Kind(ErrMembershipNotFound))
	require.Equal(t, "not_found", Kind(ErrEventNotFound))
	require.Equal(t, "invalid_argument", Kind(invalidArgument("x")))
	require.Equal(t, "unauthenticated", Kind(ErrUnauthenticated))
	require.Equal(t, "internal", Kind(context.DeadlineExceeded))
	require.Equal(t, "", Kind(nil))
}
