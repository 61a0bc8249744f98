package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/fluree-lite/db"
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
	"github.com/cubefs/fluree-lite/indexer"
	"github.com/cubefs/fluree-lite/novelty"
	"github.com/cubefs/fluree-lite/storage/kvstore"
	"github.com/cubefs/fluree-lite/storage/kvstore/memstore"
	"github.com/cubefs/fluree-lite/storage/serde/jsonserde"
)

func genesis(network, ledgerID string) *db.DB {
	roots := make(map[flake.Index]*index.Node, len(flake.All()))
	for _, idx := range flake.All() {
		roots[idx] = index.Empty(idx, network, ledgerID)
	}
	return &db.DB{
		Network: network, LedgerID: ledgerID, Block: 0, T: 0,
		Ecount: map[int64]int64{}, Roots: roots, Novelty: novelty.NewOverlay(),
	}
}

func newTestConnection() *Connection {
	store := memstore.New()
	sd := jsonserde.New()
	return Connect(Config{
		StorageFactory: func() kvstore.Store { return store },
		Serde:          sd,
		MemoryBudget:   1 << 20,
		Policy:         indexer.Policy{ReindexMin: 2, ReindexMax: 1 << 30, LeafMax: 1 << 20},
	})
}

func TestStageAdvancesBlockAndNotifiesListeners(t *testing.T) {
	c := newTestConnection()
	c.Adopt(genesis("n", "l"))

	ch, unlisten := c.Listen("n", "l", "watcher", 4)
	defer unlisten()

	ctx := context.Background()
	next, err := c.Stage(ctx, "n", "l", []flake.Flake{
		{S: 1, P: 10, O: flake.Object{I64: 42}, Dt: 7, Op: true},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, next.Block)
	require.EqualValues(t, -1, next.T)

	select {
	case u := <-ch:
		require.Equal(t, "local-ledger-update", u.Event)
		require.EqualValues(t, 1, u.Block)
	case <-time.After(time.Second):
		t.Fatal("expected an update notification")
	}
}

func TestStageTriggersReindexOnceNoveltyCrossesMin(t *testing.T) {
	c := newTestConnection()
	c.Adopt(genesis("n", "l"))
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		_, err := c.Stage(ctx, "n", "l", []flake.Flake{
			{S: i + 1, P: 10, O: flake.Object{I64: i}, Dt: 7, Op: true},
		})
		require.NoError(t, err)
	}

	final := c.Latest("n", "l")
	require.LessOrEqual(t, final.Novelty.Len(), 4) // reindexed at least once, draining some novelty
}

func TestSyncToResolvesOnceBlockReached(t *testing.T) {
	c := newTestConnection()
	c.Adopt(genesis("n", "l"))
	ctx := context.Background()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = c.Stage(ctx, "n", "l", []flake.Flake{{S: 1, P: 10, O: flake.Object{I64: 1}, Dt: 7, Op: true}})
	}()

	d, err := c.SyncTo(ctx, "n", "l", 1, time.Second)
	require.NoError(t, err)
	require.GreaterOrEqual(t, d.Block, int64(1))
}

func TestSyncToTimesOutWhenBlockNeverArrives(t *testing.T) {
	c := newTestConnection()
	c.Adopt(genesis("n", "l"))

	_, err := c.SyncTo(context.Background(), "n", "l", 5, 20*time.Millisecond)
	require.Error(t, err)
}
