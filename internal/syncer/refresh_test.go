// internal/syncer/refresh_test.go
package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/kylediaz/github-chat/internal/database"
)

func nilQuerier(tx pgx.Tx) database.Querier { return nil }

// stringResource returns a happy-path resource whose claim always wins.
func stringResource() resource[string] {
	return resource[string]{
		ensure: func(ctx context.Context) error { return nil },
		claim: func(ctx context.Context, q database.Querier) (string, error) {
			return "claimed", nil
		},
		fetch: func(ctx context.Context, claimed string) (string, error) {
			return "fetched", nil
		},
		save: func(ctx context.Context, q database.Querier, next string) error {
			return nil
		},
		current: func(ctx context.Context) (string, error) {
			return "stale", nil
		},
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("claim winner fetches, saves and commits", func(t *testing.T) {
		db := &fakeDB{}
		var fetchedFrom string
		res := stringResource()
		res.fetch = func(ctx context.Context, claimed string) (string, error) {
			fetchedFrom = claimed
			return "fetched", nil
		}

		got, err := refresh(ctx, db, nilQuerier, res)

		assert.NoError(t, err)
		assert.Equal(t, "fetched", got)
		assert.Equal(t, "claimed", fetchedFrom)
		tx := db.lastTx()
		assert.True(t, tx.committed)
		assert.False(t, tx.rolledBack)
	})

	t.Run("fresh or locked row serves the stored value without fetching", func(t *testing.T) {
		db := &fakeDB{}
		fetchCalled := false
		res := stringResource()
		res.claim = func(ctx context.Context, q database.Querier) (string, error) {
			return "", pgx.ErrNoRows
		}
		res.fetch = func(ctx context.Context, claimed string) (string, error) {
			fetchCalled = true
			return "fetched", nil
		}

		got, err := refresh(ctx, db, nilQuerier, res)

		assert.NoError(t, err)
		assert.Equal(t, "stale", got)
		assert.False(t, fetchCalled)
		assert.False(t, db.lastTx().committed)
	})

	t.Run("fetch error rolls the transaction back", func(t *testing.T) {
		db := &fakeDB{}
		fetchErr := errors.New("upstream unavailable")
		saveCalled := false
		res := stringResource()
		res.fetch = func(ctx context.Context, claimed string) (string, error) {
			return "", fetchErr
		}
		res.save = func(ctx context.Context, q database.Querier, next string) error {
			saveCalled = true
			return nil
		}

		got, err := refresh(ctx, db, nilQuerier, res)

		assert.ErrorIs(t, err, fetchErr)
		assert.Empty(t, got)
		assert.False(t, saveCalled)
		tx := db.lastTx()
		assert.False(t, tx.committed)
		assert.True(t, tx.rolledBack)
	})

	t.Run("save error rolls the transaction back", func(t *testing.T) {
		db := &fakeDB{}
		saveErr := errors.New("write failed")
		res := stringResource()
		res.save = func(ctx context.Context, q database.Querier, next string) error {
			return saveErr
		}

		_, err := refresh(ctx, db, nilQuerier, res)

		assert.ErrorIs(t, err, saveErr)
		tx := db.lastTx()
		assert.False(t, tx.committed)
		assert.True(t, tx.rolledBack)
	})

	t.Run("ensure error stops before any transaction", func(t *testing.T) {
		db := &fakeDB{}
		ensureErr := errors.New("placeholder insert failed")
		res := stringResource()
		res.ensure = func(ctx context.Context) error { return ensureErr }

		_, err := refresh(ctx, db, nilQuerier, res)

		assert.ErrorIs(t, err, ensureErr)
		assert.Empty(t, db.txs)
	})

	t.Run("begin error surfaces", func(t *testing.T) {
		beginErr := errors.New("pool exhausted")
		db := &fakeDB{beginErr: beginErr}

		_, err := refresh(ctx, db, nilQuerier, stringResource())

		assert.ErrorIs(t, err, beginErr)
	})

	t.Run("commit error surfaces", func(t *testing.T) {
		commitErr := errors.New("connection reset")
		db := &fakeDB{commitErr: commitErr}

		_, err := refresh(ctx, db, nilQuerier, stringResource())

		assert.ErrorIs(t, err, commitErr)
	})

	t.Run("current error surfaces when the claim is lost", func(t *testing.T) {
		db := &fakeDB{}
		readErr := errors.New("read failed")
		res := stringResource()
		res.claim = func(ctx context.Context, q database.Querier) (string, error) {
			return "", pgx.ErrNoRows
		}
		res.current = func(ctx context.Context) (string, error) {
			return "", readErr
		}

		_, err := refresh(ctx, db, nilQuerier, res)

		assert.ErrorIs(t, err, readErr)
	})
}

func TestRefresh_Contention(t *testing.T) {
	ctx := context.Background()

	t.Run("a caller that loses the claim returns without waiting on the winner", func(t *testing.T) {
		db := &fakeDB{}
		var rowLock sync.Mutex
		winnerHoldsLock := make(chan struct{})
		releaseWinner := make(chan struct{})
		var fetchCalls atomic.Int32

		winner := stringResource()
		winner.claim = func(ctx context.Context, q database.Querier) (string, error) {
			rowLock.Lock()
			close(winnerHoldsLock)
			return "claimed", nil
		}
		winner.fetch = func(ctx context.Context, claimed string) (string, error) {
			fetchCalls.Add(1)
			<-releaseWinner // hold the row lock mid-fetch
			return "fetched", nil
		}

		loser := stringResource()
		loser.claim = func(ctx context.Context, q database.Querier) (string, error) {
			<-winnerHoldsLock
			if !rowLock.TryLock() {
				return "", pgx.ErrNoRows
			}
			return "claimed", nil
		}

		winnerDone := make(chan string, 1)
		go func() {
			got, err := refresh(ctx, db, nilQuerier, winner)
			assert.NoError(t, err)
			winnerDone <- got
		}()

		loserDone := make(chan string, 1)
		go func() {
			got, err := refresh(ctx, db, nilQuerier, loser)
			assert.NoError(t, err)
			loserDone <- got
		}()

		select {
		case got := <-loserDone:
			assert.Equal(t, "stale", got)
		case <-time.After(2 * time.Second):
			t.Fatal("claim loser blocked behind the winner's fetch")
		}

		close(releaseWinner)
		assert.Equal(t, "fetched", <-winnerDone)
		assert.Equal(t, int32(1), fetchCalls.Load())
	})

	t.Run("only one of many concurrent callers performs the fetch", func(t *testing.T) {
		db := &fakeDB{}
		var rowLock sync.Mutex
		var fetchCalls atomic.Int32

		res := stringResource()
		res.claim = func(ctx context.Context, q database.Querier) (string, error) {
			if !rowLock.TryLock() {
				return "", pgx.ErrNoRows
			}
			return "claimed", nil
		}
		res.fetch = func(ctx context.Context, claimed string) (string, error) {
			fetchCalls.Add(1)
			return "fetched", nil
		}

		const callers = 10
		results := make(chan string, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := refresh(ctx, db, nilQuerier, res)
				assert.NoError(t, err)
				results <- got
			}()
		}
		wg.Wait()
		close(results)

		assert.Equal(t, int32(1), fetchCalls.Load())
		fetched := 0
		for got := range results {
			if got == "fetched" {
				fetched++
			} else {
				assert.Equal(t, "stale", got)
			}
		}
		assert.Equal(t, 1, fetched)
	})
}
