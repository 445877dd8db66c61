package txn

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	apperrors "github.com/experta/session-engine/internal/errors"
)

// Coordinator runs multi-store mutations as one atomic unit. Either every
// write inside the function commits, or none survive.
type Coordinator struct {
	provider Provider
	logger   zerolog.Logger
}

// NewCoordinator creates a Coordinator over the given transaction provider.
func NewCoordinator(provider Provider) *Coordinator {
	return &Coordinator{
		provider: provider,
		logger:   zerolog.Nop(),
	}
}

// WithLogger returns a copy of the Coordinator logging through the given logger.
func (c *Coordinator) WithLogger(logger zerolog.Logger) *Coordinator {
	return &Coordinator{provider: c.provider, logger: logger}
}

// Run executes fn inside a single transaction. Store operations performed
// with the context passed to fn join the transaction. Any error from fn
// aborts the whole transaction; commit failures surface as the retryable
// ErrSessionWriteFailed. Transaction resources are released on every exit
// path.
func (c *Coordinator) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	txn, err := c.provider.Begin(ctx)
	if err != nil {
		return errors.Wrapf(apperrors.ErrSessionWriteFailed, "[Coordinator.Run] begin: %v", err)
	}
	defer txn.End()

	if err := fn(txn.Context()); err != nil {
		if abortErr := txn.Abort(); abortErr != nil {
			c.logger.Error().Err(abortErr).Msg("transaction abort failed")
		}
		return err
	}

	if err := txn.Commit(); err != nil {
		if abortErr := txn.Abort(); abortErr != nil {
			c.logger.Error().Err(abortErr).Msg("transaction abort failed after commit error")
		}
		return errors.Wrapf(apperrors.ErrSessionWriteFailed, "[Coordinator.Run] commit: %v", err)
	}
	return nil
}
