package sessions

import "context"

// Repo defines canonical session storage. Implementations must join the
// transaction carried by the context when one is present (see the txn
// package) so that session rows and the device index commit as one unit.
type Repo interface {
	// GetByID retrieves a session by its unique ID.
	GetByID(ctx context.Context, id string) (*SessionRecord, error)

	// GetByUserDevice retrieves the session for a user on a specific device.
	GetByUserDevice(ctx context.Context, userID, device string) (*SessionRecord, error)

	// GetByRefreshToken retrieves the session holding the given refresh token.
	GetByRefreshToken(ctx context.Context, userID, refreshToken string) (*SessionRecord, error)

	// GetByAccessToken retrieves the live session holding the given access token.
	GetByAccessToken(ctx context.Context, accessToken string) (*SessionRecord, error)

	// ListByUser returns every session record for the user.
	ListByUser(ctx context.Context, userID string) ([]*SessionRecord, error)

	// Create inserts a new session record.
	Create(ctx context.Context, record *SessionRecord) error

	// Update replaces the stored record matching (UserID, Device).
	Update(ctx context.Context, record *SessionRecord) error

	// UpdateAccessToken replaces only the access token of the (userID, device)
	// session and returns the updated record.
	UpdateAccessToken(ctx context.Context, userID, device, accessToken string) (*SessionRecord, error)

	// Delete removes the (userID, device) session. It reports whether a
	// record was actually removed.
	Delete(ctx context.Context, userID, device string) (bool, error)

	// DeleteAllForUser removes every session for the user and returns the
	// number of deleted records.
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}
