package identity

import (
	"context"
	"time"
)

// Identity is a persisted principal keyed by its normalized email.
type Identity struct {
	ID        string
	Email     string
	UID       string
	CreatedAt time.Time
}

// Attributes are the claim values a Resolver links on.
type Attributes struct {
	Email string
	UID   string
}

// Store is the durable identity persistence boundary.
//
// Create must enforce uniqueness of Email at the storage layer and report a
// violation as a [ConflictError]. FindByEmail returns [ErrNotFound] when no
// row matches.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	Create(ctx context.Context, in Identity) (*Identity, error)
}
