package memory

import (
	"context"
	"log/slog"

	"librarian/internal/domain/repositories"
)

// TransactionManager gives memory repositories all-or-nothing semantics.
// A transaction holds the store's write lock until it commits or rolls
// back, so no reader observes its writes early. Writes made through the
// transaction's ctx are undone in reverse order when fn fails.
//
// fn must only touch the store through the ctx it is given.
type TransactionManager struct {
	store  *Store
	logger *slog.Logger
}

// NewTransactionManager creates a transaction manager over store
func NewTransactionManager(store *Store, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{store: store, logger: logger}
}

// ExecTx runs fn in a transaction. Nested calls join the outer one.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if journalFrom(ctx) != nil {
		return fn(ctx)
	}

	tm.store.mu.Lock()
	defer tm.store.mu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		tm.logger.Debug("memory transaction rolled back", "steps", len(j.undo), "error", err)
		return err
	}

	return nil
}
