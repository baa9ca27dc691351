package core

import "context"

type (
	// Transactor runs `fn` inside a single store transaction.
	// Repositories called with the ctx handed to `fn` read from (and write to) that transaction,
	// so a report sees one consistent snapshot and a multi-row write commits or rolls back as a whole.
	Transactor interface {
		InTx(ctx context.Context, readOnly bool, fn func(ctx context.Context) error) error
	}
)

// ReadTx is shorthand for a read-only InTx.
func ReadTx(ctx context.Context, tx Transactor, fn func(ctx context.Context) error) error {
	return tx.InTx(ctx, true, fn)
}

// WriteTx is shorthand for a read-write InTx.
func WriteTx(ctx context.Context, tx Transactor, fn func(ctx context.Context) error) error {
	return tx.InTx(ctx, false, fn)
}
