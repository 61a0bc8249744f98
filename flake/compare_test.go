package flake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mkFlake(s, p int64, i64 int64, dt int32, t int64, op bool) Flake {
	return Flake{S: s, P: p, O: Object{I64: i64}, Dt: dt, T: t, Op: op}
}

func TestCompareSPOTOrdersBySubjectThenPredicateThenObject(t *testing.T) {
	a := mkFlake(1, 10, 9, 7, -1, true)
	b := mkFlake(1, 10, 42, 7, -1, true)
	c := mkFlake(1, 10, 76, 7, -1, true)

	require.True(t, Less(SPOT, a, b))
	require.True(t, Less(SPOT, b, c))
	require.False(t, Less(SPOT, c, a))
}

func TestCompareTDescWithinSamePrefix(t *testing.T) {
	// t grows more negative with each transaction (§3.1, §8), so the more
	// recent flake has the smaller (more negative) t.
	older := mkFlake(1, 10, 42, 7, -1, true)
	newer := mkFlake(1, 10, 42, 7, -5, true)

	// t desc: more recent precedes older.
	require.True(t, Less(SPOT, newer, older))
}

func TestCompareObjectNeverCoercesAcrossDatatypes(t *testing.T) {
	asInt := mkFlake(1, 10, 42, 7, -1, true)
	asOtherDt := mkFlake(1, 10, 42, 8, -1, true)

	require.True(t, Less(SPOT, asInt, asOtherDt) || Less(SPOT, asOtherDt, asInt))
	require.False(t, Compare(SPOT, asInt, asOtherDt) == 0)
}

func TestTieBreakAssertBeforeRetract(t *testing.T) {
	assertFlake := mkFlake(1, 10, 42, 7, -1, true)
	retractFlake := mkFlake(1, 10, 42, 7, -1, false)

	require.True(t, Less(SPOT, assertFlake, retractFlake))
}

func TestEqualFlakesCompareEqualUnderEveryIndex(t *testing.T) {
	a := mkFlake(1, 10, 42, 7, -1, true)
	b := mkFlake(1, 10, 42, 7, -1, true)
	require.True(t, a.Equal(b))
	for _, idx := range All() {
		require.Equal(t, 0, Compare(idx, a, b), "index %s", idx)
	}
}

func TestPSOTOrdersByPredicateFirst(t *testing.T) {
	a := mkFlake(2, 5, 1, 7, -1, true)
	b := mkFlake(1, 6, 1, 7, -1, true)
	require.True(t, Less(PSOT, a, b))
}

func TestTSPOOrdersByTDescFirst(t *testing.T) {
	newer := mkFlake(5, 5, 1, 7, -5, true)
	older := mkFlake(1, 1, 1, 7, -1, true)
	require.True(t, Less(TSPO, newer, older))
}
