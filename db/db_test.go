package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/index"
	"github.com/cubefs/fluree-lite/novelty"
	"github.com/cubefs/fluree-lite/storage/kvstore/memstore"
	"github.com/cubefs/fluree-lite/storage/serde/jsonserde"
)

func emptyRoots(network, ledger string) map[flake.Index]*index.Node {
	out := make(map[flake.Index]*index.Node, len(flake.All()))
	for _, idx := range flake.All() {
		out[idx] = index.Empty(idx, network, ledger)
	}
	return out
}

// liveT stands in for "no as-of restriction yet applied" — a real DB's T
// is always some deeply negative value reflecting its actual transaction
// history, never the zero value, since t is strictly negative from the
// first commit onward (§3.1).
const liveT = -(int64(1) << 40)

func newTestDB() *DB {
	return &DB{
		Network: "test-net", LedgerID: "test-ledger", Block: 0, T: liveT,
		Ecount:  map[int64]int64{},
		Roots:   emptyRoots("test-net", "test-ledger"),
		Novelty: novelty.NewOverlay(),
		Schema:  Schema{Predicates: map[string]PredicateMeta{}, Collections: map[string]int64{}},
	}
}

func notRef(int32) bool { return false }

func TestWithFlakesAdvancesStatsAndLeavesOriginalUntouched(t *testing.T) {
	d0 := newTestDB()
	flakes := []flake.Flake{
		{S: 1, P: 10, O: flake.Object{I64: 42}, Dt: 7, T: -1, Op: true},
	}

	d1 := WithFlakes(d0, flakes, notRef)

	require.EqualValues(t, 0, d0.Stats.Flakes)
	require.EqualValues(t, 1, d1.Stats.Flakes)
	require.Equal(t, 1, d1.Novelty.Set(flake.SPOT).Len())
	require.Equal(t, 0, d0.Novelty.Set(flake.SPOT).Len())
}

func TestAsOfHidesMoreRecentNovelty(t *testing.T) {
	d0 := newTestDB()
	older := flake.Flake{S: 1, P: 10, O: flake.Object{I64: 1}, Dt: 7, T: -1, Op: true}
	newer := flake.Flake{S: 1, P: 10, O: flake.Object{I64: 2}, Dt: 7, T: -3, Op: true}

	d1 := WithFlakes(d0, []flake.Flake{older, newer}, notRef)
	require.Equal(t, 2, d1.Novelty.Set(flake.SPOT).Len())

	// as-of(-1) keeps only transactions with t >= -1: just the older flake,
	// since t grows more negative (newer = -3 < -1).
	asOf := AsOf(d1, -1)
	require.Equal(t, 1, asOf.Novelty.Set(flake.SPOT).Len())
}

func TestAsOfCompositionKeepsMoreRestrictiveCutoff(t *testing.T) {
	d0 := newTestDB()
	d1 := AsOf(d0, -5)
	d2 := AsOf(d1, -2)
	// -2 is closer to zero (less restrictive in isolation) than -5, but
	// composing keeps the tighter of the two: per §8's law, the cutoff
	// closer to zero wins, i.e. max(-5, -2) == -2.
	require.EqualValues(t, -2, d2.T)

	d3 := AsOf(d2, -9)
	// -9 is more restrictive than the already-applied -2 bound; composing
	// again must not loosen back out to -9.
	require.EqualValues(t, -2, d3.T)
}

func TestTimeTravelByTDelegatesToAsOf(t *testing.T) {
	d0 := newTestDB()
	store := memstore.New()
	sd := jsonserde.New()
	resolver := index.NewResolver(store, sd, 1<<20)

	tNeg := int64(-4)
	out, err := TimeTravel(context.Background(), resolver, d0, Addr{T: &tNeg})
	require.NoError(t, err)
	require.EqualValues(t, -4, out.T)
}

func TestTimeTravelByBlockAndInstantResolveViaTxMeta(t *testing.T) {
	ctx := context.Background()
	d0 := newTestDB()
	store := memstore.New()
	sd := jsonserde.New()
	resolver := index.NewResolver(store, sd, 1<<20)

	t1, _ := time.Parse(time.RFC3339, "2026-01-01T00:00:00Z")
	t2, _ := time.Parse(time.RFC3339, "2026-01-02T00:00:00Z")

	commitA := []flake.Flake{
		{S: -1, P: flake.TxTimePredicate, O: flake.Object{Str: t1.UTC().Format(time.RFC3339Nano)}, Dt: flake.TxTimeDt, T: -1, Op: true},
		{S: -1, P: flake.TxBlockPredicate, O: flake.Object{I64: 1}, Dt: flake.TxBlockDt, T: -1, Op: true},
	}
	commitB := []flake.Flake{
		{S: -2, P: flake.TxTimePredicate, O: flake.Object{Str: t2.UTC().Format(time.RFC3339Nano)}, Dt: flake.TxTimeDt, T: -2, Op: true},
		{S: -2, P: flake.TxBlockPredicate, O: flake.Object{I64: 2}, Dt: flake.TxBlockDt, T: -2, Op: true},
	}

	d1 := WithFlakes(d0, commitA, notRef)
	d1.Block = 1
	d2 := WithFlakes(d1, commitB, notRef)
	d2.Block = 2

	byBlock, err := TimeTravel(ctx, resolver, d2, Addr{Block: 1})
	require.NoError(t, err)
	require.EqualValues(t, -1, byBlock.T)

	between := t1.Add(12 * time.Hour)
	byInstant, err := TimeTravel(ctx, resolver, d2, Addr{Instant: between})
	require.NoError(t, err)
	require.EqualValues(t, -1, byInstant.T)

	after := t2.Add(1 * time.Hour)
	byInstant2, err := TimeTravel(ctx, resolver, d2, Addr{Instant: after})
	require.NoError(t, err)
	require.EqualValues(t, -2, byInstant2.T)
}
