package txn

import "context"

// Txn is a single transaction attempt against the underlying stores.
// Callers must End every transaction regardless of outcome; End releases the
// transaction resources and is safe to call after Commit or Abort.
type Txn interface {
	// Context returns a context bound to this transaction. Store operations
	// performed with it join the transaction.
	Context() context.Context

	// Commit makes the transaction's writes durable.
	Commit() error

	// Abort discards every write performed inside the transaction.
	Abort() error

	// End releases transaction resources.
	End()
}

// Provider opens transactions spanning the session store and the profile
// store. The returned transaction is the engine's sole serialization point:
// concurrent mutations of the same user's records must conflict at commit,
// not silently interleave.
type Provider interface {
	Begin(ctx context.Context) (Txn, error)
}
