package driven

import (
	"context"

	"github.com/zihaowei/bilipanel/internal/domain/model"
)

// CookieStore defines the driven port for encrypted cookie persistence.
// The adapter layer owns encryption and expiry bookkeeping; this interface
// operates on plaintext cookie strings at the domain boundary.
type CookieStore interface {
	// Save stores the cookie, replacing any previously stored one, and
	// stamps a fresh expiry window.
	Save(ctx context.Context, raw string) error

	// GetValid returns the stored cookie that has not yet expired, along
	// with a flag indicating it is close to expiry and should be renewed.
	// Returns (nil, false, nil) when no unexpired cookie exists.
	GetValid(ctx context.Context) (*model.StoredCookie, bool, error)

	// Clear removes all stored cookies. Clearing an empty store is not an
	// error.
	Clear(ctx context.Context) error
}
