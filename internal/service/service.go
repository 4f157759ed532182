// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/repository"
)

// EventService orchestrates event, invite and roster operations.
type EventService struct {
	events   repository.EventStore
	invites  repository.InviteStore
	members  repository.MembershipStore
	tx       *txRunner
	validate *validator.Validate
	clock    func() time.Time
	logger   *zap.Logger
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(
	events repository.EventStore,
	invites repository.InviteStore,
	members repository.MembershipStore,
	opts ...Option,
) *EventService {
	o := buildOptions(opts)
	logger := o.logger.Named("events")
	return &EventService{
		events:  events,
		invites: invites,
		members: members,
		tx: &txRunner{
			members:     members,
			maxAttempts: o.maxAttempts,
			backoff:     o.retryBackoff,
			logger:      logger,
		},
		validate: newValidator(),
		clock:    o.clock,
		logger:   logger,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *EventService) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return invalidArgument(fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()))
		}
		return invalidArgument(err.Error())
	}
	return nil
}

// CreateEvent validates the request and stores a new pending event hosted by hostID.
func (s *EventService) CreateEvent(ctx context.Context, hostID string, req model.CreateEventRequest) (*model.Event, error) {
	if hostID == "" {
		return nil, ErrUnauthenticated
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Location = strings.TrimSpace(req.Location)
	if err := s.check(req); err != nil {
		return nil, err
	}
	if req.StartTime.IsZero() {
		return nil, invalidArgument("start_time is required")
	}

	cutoff := model.DefaultCutoffMinutes
	if req.CutoffMinutes != nil {
		cutoff = *req.CutoffMinutes
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = model.VisibilityPublic
	}

	now := s.clock()
	event := &model.Event{
		ID:            uuid.New().String(),
		Title:         req.Title,
		Description:   req.Description,
		Location:      req.Location,
		MaxSlots:      req.MaxSlots,
		StartTime:     req.StartTime.UTC(),
		CutoffMinutes: cutoff,
		Visibility:    visibility,
		HostID:        hostID,
		Status:        model.EventPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("host_id", hostID),
		zap.Int("max_slots", event.MaxSlots),
	)
	return event, nil
}

// GetEvent returns an event with its current occupancy.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.EventView, error) {
	event, err := s.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	list, err := s.members.ListByEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	attending, waitlisted := repository.SplitByState(list)
	return &model.EventView{
		Event:         *event,
		AttendeeCount: len(attending),
		WaitlistCount: len(waitlisted),
	}, nil
}

// UpdateEvent applies the non-nil fields of req. Only the host may update.
func (s *EventService) UpdateEvent(ctx context.Context, userID, id string, req model.UpdateEventRequest) (*model.Event, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	event, err := s.hostEvent(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		event.Title = strings.TrimSpace(*req.Title)
		if event.Title == "" {
			return nil, invalidArgument("title must not be blank")
		}
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Location != nil {
		event.Location = strings.TrimSpace(*req.Location)
		if event.Location == "" {
			return nil, invalidArgument("location must not be blank")
		}
	}
	if req.StartTime != nil {
		if req.StartTime.IsZero() {
			return nil, invalidArgument("start_time must not be zero")
		}
		event.StartTime = req.StartTime.UTC()
	}
	if req.CutoffMinutes != nil {
		event.CutoffMinutes = *req.CutoffMinutes
	}
	if req.Visibility != nil {
		event.Visibility = *req.Visibility
	}
	event.UpdatedAt = s.clock()

	if err := s.events.Update(ctx, event); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

// CancelEvent marks the event cancelled. Only the host may cancel. The
// status is written under the event lock so it cannot race a claim that
// fills the last seat.
func (s *EventService) CancelEvent(ctx context.Context, userID, id string) error {
	if _, err := s.hostEvent(ctx, userID, id); err != nil {
		return err
	}
	err := s.tx.run(ctx, "cancel", id, func(tx repository.MembershipTx) error {
		if tx.Event().Status == model.EventCancelled {
			return nil
		}
		return tx.SetEventStatus(ctx, model.EventCancelled)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEventNotFound
		}
		if errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("cancel event: %w", err)
	}
	s.logger.Info("event cancelled", zap.String("event_id", id), zap.String("host_id", userID))
	return nil
}

// Roster returns the attendees and the ordered waitlist of an event.
func (s *EventService) Roster(ctx context.Context, id string) (*model.Roster, error) {
	if _, err := s.getEvent(ctx, id); err != nil {
		return nil, err
	}
	list, err := s.members.ListByEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	attending, waitlisted := repository.SplitByState(list)
	if attending == nil {
		attending = []model.Membership{}
	}
	if waitlisted == nil {
		waitlisted = []model.Membership{}
	}
	return &model.Roster{Attending: attending, Waitlist: waitlisted}, nil
}

// Invite records a pending invite from the host to req.UserID.
func (s *EventService) Invite(ctx context.Context, hostID, eventID string, req model.CreateInviteRequest) (*model.Invite, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if err := s.check(req); err != nil {
		return nil, err
	}
	if _, err := s.hostEvent(ctx, hostID, eventID); err != nil {
		return nil, err
	}
	if req.UserID == hostID {
		return nil, invalidArgument("host cannot invite themselves")
	}

	now := s.clock()
	inv := &model.Invite{
		ID:        uuid.New().String(),
		EventID:   eventID,
		UserID:    req.UserID,
		Status:    model.InvitePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.invites.Create(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: user already invited", ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create invite: %w", err)
	}
	return inv, nil
}

// AcceptInvite marks userID's invite to eventID accepted. Accepting twice is
// a no-op.
func (s *EventService) AcceptInvite(ctx context.Context, userID, eventID string) (*model.Invite, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := s.getEvent(ctx, eventID); err != nil {
		return nil, err
	}
	inv, err := s.invites.Get(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("get invite: %w", err)
	}
	if inv.Status == model.InviteAccepted {
		return inv, nil
	}

	now := s.clock()
	if err := s.invites.UpdateStatus(ctx, inv.ID, model.InviteAccepted, now); err != nil {
		return nil, fmt.Errorf("accept invite: %w", err)
	}
	inv.Status = model.InviteAccepted
	inv.UpdatedAt = now
	return inv, nil
}

func (s *EventService) getEvent(ctx context.Context, id string) (*model.Event, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalidArgument("event id is required")
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (s *EventService) hostEvent(ctx context.Context, userID, id string) (*model.Event, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	event, err := s.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.HostID != userID {
		return nil, fmt.Errorf("%w: only the host can manage this event", ErrPermissionDenied)
	}
	return event, nil
}
