package commit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/fluree-lite/db"
	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
	"github.com/cubefs/fluree-lite/novelty"
	"github.com/cubefs/fluree-lite/storage/kvstore"
	"github.com/cubefs/fluree-lite/storage/kvstore/memstore"
	"github.com/cubefs/fluree-lite/storage/serde"
	"github.com/cubefs/fluree-lite/storage/serde/jsonserde"
)

func TestPublishWritesLeavesBranchesGarbageThenRootInOrder(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	sd := jsonserde.New()

	next := &db.DB{
		Network: "n", LedgerID: "l", Block: 1, T: -1,
		Ecount: map[int64]int64{}, Stats: db.Stats{Flakes: 1, Size: 10},
	}

	leafKey := "n_l_spot_leaf-1-l"
	leaf := serde.Leaf{Flakes: serde.ToRecords([]flake.Flake{
		{S: 1, P: 10, O: flake.Object{I64: 1}, Dt: 7, T: -1, Op: true},
	})}

	ws := WriteSet{
		Leaves: map[flake.Index][]LeafWrite{
			flake.SPOT: {{Key: leafKey, Body: leaf}},
		},
		Garbage: []string{"old-leaf-0"},
		Roots: map[flake.Index]index.Child{
			flake.SPOT: {ID: leafKey, IsLeaf: true},
		},
	}

	rootKey, err := Publish(ctx, store, sd, next, ws, 1000, 0, "", 0)
	require.NoError(t, err)
	require.Equal(t, kvstore.RootKey("n", "l", 1), rootKey)

	_, err = store.Read(ctx, leafKey).Get(ctx)
	require.NoError(t, err)

	g, err := ReadGarbage(ctx, store, sd, "n", "l", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"old-leaf-0"}, g.NodeIDs)

	loaded, err := Load(ctx, store, sd, "n", "l", 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, loaded.Block)
	require.EqualValues(t, -1, loaded.T)
	require.Equal(t, leafKey, loaded.Root(flake.SPOT).ID)
}

func TestReadGarbageMissingBlobYieldsEmptyList(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	sd := jsonserde.New()

	g, err := ReadGarbage(ctx, store, sd, "n", "l", 7)
	require.NoError(t, err)
	require.Empty(t, g.NodeIDs)
}

func TestSweepDeletesGarbageUpToBlock(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	sd := jsonserde.New()

	_, err := store.Write(ctx, "stale-node", []byte("x")).Get(ctx)
	require.NoError(t, err)

	garbage := serde.Garbage{LedgerID: "l", Block: 1, NodeIDs: []string{"stale-node"}}
	b, err := sd.SerializeGarbage(garbage)
	require.NoError(t, err)
	_, err = store.Write(ctx, kvstore.GarbageKey("n", "l", 1), b).Get(ctx)
	require.NoError(t, err)

	deleted, err := Sweep(ctx, store, sd, "n", "l", 1)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	_, err = store.Read(ctx, "stale-node").Get(ctx)
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

var _ = novelty.NewOverlay
