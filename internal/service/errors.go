package service

import (
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/auth"
)

// Error kinds returned by the service layer. Match with errors.Is.
var (
	ErrUnauthenticated    = auth.ErrUnauthenticated
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrRegistrationClosed = errors.New("event registration is closed")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrAlreadyExists      = errors.New("already attending or waitlisted")
	ErrConflict           = errors.New("too much contention, try again")
	ErrRateLimited        = errors.New("too many requests")
)

// Not-found errors for specific resources. Each matches ErrNotFound.
var (
	ErrEventNotFound      = fmt.Errorf("event %w", ErrNotFound)
	ErrMembershipNotFound = fmt.Errorf("not attending or waitlisted: %w", ErrNotFound)
	ErrInviteNotFound     = fmt.Errorf("invite %w", ErrNotFound)
)

// Kind returns a stable short name for err's kind, used as the API error
// code and as a metrics label.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRegistrationClosed):
		return "registration_closed"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}

func invalidArgument(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}
