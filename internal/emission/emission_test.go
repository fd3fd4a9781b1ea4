package emission

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagu-org/taskkernel/internal/handle"
)

func TestAppendAndHistory(t *testing.T) {
	log := New()
	log.Append(1, 0, nil, nil)
	log.Append(1, 5, "payload", []handle.ID{2})

	hist := log.History(1)
	require.Len(t, hist, 2)
	require.Equal(t, "payload", hist[1].Payload)
	require.Equal(t, []handle.ID{2}, hist[1].Sources)
}

func TestLastAndHasEmitted(t *testing.T) {
	log := New()
	require.False(t, log.HasEmitted(1))

	log.Append(1, 1, nil, nil)
	log.Append(1, 3, nil, nil)

	last, ok := log.Last(1)
	require.True(t, ok)
	require.Equal(t, float64(3), last.Time)
	require.True(t, log.HasEmitted(1))
}

func TestCountSince(t *testing.T) {
	log := New()
	log.Append(1, 0, nil, nil)
	log.Append(1, 1, nil, nil)
	log.Append(1, 2, nil, nil)
	log.Append(1, 5, nil, nil)

	require.Equal(t, 4, log.CountSince(1, 0))
	require.Equal(t, 2, log.CountSince(1, 2))
	require.Equal(t, 0, log.CountSince(1, 6))
}

func TestAnySatisfies(t *testing.T) {
	log := New()
	log.Append(1, 0, nil, nil)
	log.Append(1, 10, nil, nil)

	found := log.AnySatisfies(1, func(r Record) bool { return r.Time == 10 })
	require.True(t, found)

	notFound := log.AnySatisfies(1, func(r Record) bool { return r.Time == 99 })
	require.False(t, notFound)
}

func TestRemoveClearsHistory(t *testing.T) {
	log := New()
	log.Append(1, 0, nil, nil)
	log.Remove(1)
	require.False(t, log.HasEmitted(1))
	require.Empty(t, log.History(1))
}
