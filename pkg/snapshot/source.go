package snapshot

import (
	"context"
	"errors"

	"github.com/platinummonkey/mesauthz/pkg/rbac"
)

var (
	// ErrUserNotFound is returned when the source has no record for a user
	ErrUserNotFound = errors.New("user not found")
	// ErrCorruptRole is returned when a stored role cannot be decoded
	ErrCorruptRole = errors.New("corrupt role record")
	// ErrUnknownRole is returned when a user references a role that does not exist
	ErrUnknownRole = errors.New("unknown role")
)

// Record is one user's snapshot plus their stored home page preference
type Record struct {
	User     rbac.User
	HomePage string
}

// Source loads user snapshots
type Source interface {
	// Load returns the snapshot for userID. Implementations must read roles
	// and bindings atomically.
	Load(ctx context.Context, userID string) (Record, error)
}
