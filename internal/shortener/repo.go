package shortener

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the transactional boundary for Link persistence. It is the
// single serialization point for the two uniqueness invariants (destination
// URL and short code); everything above it only reacts to its conflict
// signals.
//
// Errors carry errx kinds: NotFound for missing keys, Conflict for unique
// constraint violations (wrapping ErrDestinationTaken or ErrCodeTaken so
// callers can tell which index was hit), Unavailable for store outages.
type Repository interface {
	// FindByDestination is a point lookup on the unique destination index.
	FindByDestination(ctx context.Context, destination string) (Link, error)

	// FindByCode is a point lookup on the unique short-code index.
	FindByCode(ctx context.Context, code string) (Link, error)

	// Insert atomically creates a new Link. A Conflict on the destination
	// index means another writer won the race on the same URL; a Conflict
	// on the code index means the candidate code is taken.
	Insert(ctx context.Context, link Link) (Link, error)

	// IncrementClicks atomically adds 1 to the click counter and advances
	// updated_at. The increment happens inside the store, never as an
	// application-level read-modify-write, so no update is lost under
	// concurrent resolution.
	IncrementClicks(ctx context.Context, id uuid.UUID) (int64, error)

	// SetTitle records the fetched page title and advances updated_at.
	SetTitle(ctx context.Context, id uuid.UUID, title string) error

	// AttachOwner associates an owner reference with a Link. The relation
	// is metadata attached for the caller; engine correctness never depends
	// on it. Attaching the same owner twice is a no-op.
	AttachOwner(ctx context.Context, id uuid.UUID, ownerRef string) error
}
