package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCarriesKindAndDefaultStatus(t *testing.T) {
	err := New(InvalidQuery, "bad select clause")
	require.Equal(t, InvalidQuery, err.Kind)
	require.Equal(t, 400, err.HTTPStatus)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("node not found")
	err := Wrap(cause, StorageError, "resolve failed")
	require.ErrorIs(t, err, cause)
}

func TestIsMatchesOnKindNotMessage(t *testing.T) {
	a := New(Timeout, "deadline exceeded waiting for indexer")
	b := New(Timeout, "a different message entirely")
	require.True(t, errors.Is(a, b))
}

func TestKindOfDefaultsToUnexpected(t *testing.T) {
	require.Equal(t, UnexpectedError, KindOf(errors.New("plain error")))
	require.Equal(t, Unavailable, KindOf(New(Unavailable, "missing root")))
}
