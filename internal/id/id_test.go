package id

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestV7Unique(t *testing.T) {
	t.Parallel()

	first, err := V7{}.NewID()
	require.NoError(t, err)
	second, err := V7{}.NewID()
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.Equal(t, uuid.Version(7), first.Version())
	require.Less(t, first.String(), second.String())
}

func TestSequence(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	seq := NewSequence(a, b)

	got, err := seq.NewID()
	require.NoError(t, err)
	require.Equal(t, a, got)
	got, err = seq.NewID()
	require.NoError(t, err)
	require.Equal(t, b, got)
	_, err = seq.NewID()
	require.Error(t, err)
}
