// internal/syncer/refresh.go
package syncer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/kylediaz/github-chat/internal/database"
)

// txBeginner is the slice of *pgxpool.Pool the refresh flow needs.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// resource wires one externally sourced record into the shared refresh
// flow. claim must lock the row with FOR UPDATE SKIP LOCKED and return
// pgx.ErrNoRows both when the row is fresh enough and when another
// transaction holds it; the flow treats the two identically. fetch turns a
// confirmed upstream absence into a storable value rather than an error,
// so absences get cached like any other answer. save runs on the claim
// transaction and must leave the record fully updated before commit.
type resource[T any] struct {
	ensure  func(ctx context.Context) error
	claim   func(ctx context.Context, q database.Querier) (T, error)
	fetch   func(ctx context.Context, claimed T) (T, error)
	save    func(ctx context.Context, q database.Querier, next T) error
	current func(ctx context.Context) (T, error)
}

// refresh performs one staleness-gated refresh pass over a single record:
// make sure its row exists, try to claim it, and either do the external
// fetch as the claim winner or return whatever is stored right now.
// Claim losers never wait on the winner. A fetch or save error rolls the
// transaction back, leaving the record's fetch timestamp untouched so the
// next caller retries.
func refresh[T any](ctx context.Context, db txBeginner, newQ func(tx pgx.Tx) database.Querier, r resource[T]) (T, error) {
	var zero T

	if err := r.ensure(ctx); err != nil {
		return zero, err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return zero, err
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	claimed, err := r.claim(ctx, newQ(tx))
	if errors.Is(err, pgx.ErrNoRows) {
		return r.current(ctx)
	}
	if err != nil {
		return zero, err
	}

	next, err := r.fetch(ctx, claimed)
	if err != nil {
		return zero, err
	}

	if err := r.save(ctx, newQ(tx), next); err != nil {
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, err
	}
	return next, nil
}
