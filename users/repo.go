package users

import "context"

// Repo is the profile-store contract consumed by the engine. Implementations
// must join the transaction carried by the context when one is present.
type Repo interface {
	// GetByID retrieves an identity by its unique ID.
	GetByID(ctx context.Context, id string) (*Identity, error)

	// UpdateDeviceIndex replaces the identity's device index.
	UpdateDeviceIndex(ctx context.Context, id string, index map[string]string) error

	// IterateIDs calls fn for every known identity ID. Used by the
	// maintenance sweep. Iteration stops at the first error returned by fn.
	IterateIDs(ctx context.Context, fn func(id string) error) error
}
