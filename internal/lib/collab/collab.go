// Package collab runs calls to external collaborators (ledger, sealing service, blob store, wallet).
package collab

import (
	"context"
	"time"

	"albumvault/internal/domain/models"
	"albumvault/internal/metrics"
)

const (
	Ledger    = "ledger"
	Sealing   = "sealing"
	BlobStore = "blob_store"
	Wallet    = "wallet"
)

// Do runs fn under its own timeout. A failure is returned as *models.CollaboratorError.
func Do(ctx context.Context, timeout time.Duration, collaborator, op string, fn func(ctx context.Context) error) error {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(callCtx)
	metrics.CollaboratorDuration.WithLabelValues(collaborator, op).Observe(time.Since(start).Seconds())

	if err != nil {
		return &models.CollaboratorError{Collaborator: collaborator, Op: op, Err: err}
	}

	return nil
}
