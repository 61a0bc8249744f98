package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/fluree-lite/flake"
	"github.com/cubefs/fluree-lite/novelty"
	"github.com/cubefs/fluree-lite/storage/kvstore"
	"github.com/cubefs/fluree-lite/storage/kvstore/memstore"
	"github.com/cubefs/fluree-lite/storage/serde"
	"github.com/cubefs/fluree-lite/storage/serde/jsonserde"
)

// failingStore wraps a Store and fails Read for one designated key,
// simulating a storage-error mid-scan (§7: "errors from Store are
// surfaced unchanged to the read they fail").
type failingStore struct {
	*memstore.Store
	failKey string
	failErr error
}

func (s *failingStore) Read(ctx context.Context, key string) *kvstore.Future[[]byte] {
	if key == s.failKey {
		return kvstore.Resolved[[]byte](nil, s.failErr)
	}
	return s.Store.Read(ctx, key)
}

func obj(i int64) flake.Object { return flake.Object{I64: i} }

func flk(s, p, o int64, dt int32, t int64) flake.Flake {
	return flake.Flake{S: s, P: p, O: obj(o), Dt: dt, T: t, Op: true}
}

// buildTwoLeafTree writes two sorted leaves under spot and a branch
// pointing at both, returning the branch's root Node.
func buildTwoLeafTree(t *testing.T, ctx context.Context, store *memstore.Store, sd serde.Serde, idx flake.Index, leftFlakes, rightFlakes []flake.Flake) *Node {
	writeLeaf := func(fs []flake.Flake, id string) Child {
		leaf := serde.Leaf{Flakes: serde.ToRecords(fs)}
		b, err := sd.SerializeLeaf(leaf)
		require.NoError(t, err)
		_, err = store.Write(ctx, id, b).Get(ctx)
		require.NoError(t, err)
		var rhs *flake.Flake
		return Child{ID: id, First: &fs[0], Rhs: rhs, Size: int64(len(b)), IsLeaf: true}
	}

	left := writeLeaf(leftFlakes, "leaf-left")
	right := writeLeaf(rightFlakes, "leaf-right")
	rhsVal := rightFlakes[0]
	left.Rhs = &rhsVal
	left.Leftmost = true

	branch := serde.Branch{Children: []serde.ChildSummary{ChildToSummary(left), ChildToSummary(right)}}
	bb, err := sd.SerializeBranch(branch)
	require.NoError(t, err)
	_, err = store.Write(ctx, "branch-root", bb).Get(ctx)
	require.NoError(t, err)

	return &Node{ID: "branch-root", Comparator: idx, Leftmost: true, IsLeaf: false}
}

func TestRangeScanOrdersAcrossLeavesAndMergesNovelty(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	sd := jsonserde.New()

	left := []flake.Flake{flk(1, 10, 1, 7, -1), flk(1, 10, 5, 7, -1)}
	right := []flake.Flake{flk(1, 10, 9, 7, -1), flk(1, 10, 20, 7, -1)}

	root := buildTwoLeafTree(t, ctx, store, sd, flake.SPOT, left, right)
	resolver := NewResolver(store, sd, 1<<20)

	nov := novelty.NewSet(flake.SPOT)
	nov.Add(flk(1, 10, 7, 7, -2)) // should land between leaf-left and leaf-right

	cur, err := RangeScan(ctx, resolver, root, nov, flake.SPOT, flake.Flake{}, flake.Flake{}, false)
	require.NoError(t, err)

	var got []int64
	for {
		f, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, f.O.I64)
	}
	require.Equal(t, []int64{1, 5, 7, 9, 20}, got)
}

func TestRangeScanNoDuplicatesWhenNoveltyMirrorsDisk(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	sd := jsonserde.New()

	left := []flake.Flake{flk(1, 10, 1, 7, -1)}
	right := []flake.Flake{flk(1, 10, 9, 7, -1)}
	root := buildTwoLeafTree(t, ctx, store, sd, flake.SPOT, left, right)
	resolver := NewResolver(store, sd, 1<<20)

	nov := novelty.NewSet(flake.SPOT)
	nov.Add(left[0]) // identical to an on-disk flake

	cur, err := RangeScan(ctx, resolver, root, nov, flake.SPOT, flake.Flake{}, flake.Flake{}, false)
	require.NoError(t, err)

	var got []int64
	for {
		f, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, f.O.I64)
	}
	require.Equal(t, []int64{1, 9}, got)
}

func TestPointInTimeRetractionRemovesGroup(t *testing.T) {
	// t=-1 is the older assert (t strictly decreases with each later
	// transaction per §3.1/§8); t=-2 is the more recent retract.
	assertF := flk(1, 10, 42, 7, -1)
	retractF := flake.Flake{S: 1, P: 10, O: obj(42), Dt: 7, T: -2, Op: false}

	out := PointInTime([]flake.Flake{assertF, retractF}, -2)
	require.Empty(t, out)

	outBefore := PointInTime([]flake.Flake{assertF, retractF}, -1)
	require.Len(t, outBefore, 1)
}

func TestRangeScanSurfacesResolveErrorInsteadOfTruncating(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	sd := jsonserde.New()

	left := []flake.Flake{flk(1, 10, 1, 7, -1)}
	right := []flake.Flake{flk(1, 10, 9, 7, -1)}

	root := buildTwoLeafTree(t, ctx, mem, sd, flake.SPOT, left, right)

	wantErr := errors.New("boom: disk unavailable")
	store := &failingStore{Store: mem, failKey: "leaf-right", failErr: wantErr}
	resolver := NewResolver(store, sd, 1<<20)

	cur, err := RangeScan(ctx, resolver, root, nil, flake.SPOT, flake.Flake{}, flake.Flake{}, false)
	require.NoError(t, err)

	f, ok, err := cur.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), f.O.I64)

	// exhausting leaf-left forces advanceLeaf to resolve leaf-right, which
	// fails; the error must come back unchanged, not as a clean (false, nil)
	// end-of-scan.
	_, ok, err = cur.Next(ctx)
	require.False(t, ok)
	require.ErrorIs(t, err, wantErr)
}
