package plan

import (
	"sort"
	"time"

	"github.com/dagu-org/taskkernel/internal/handle"
)

func sortedHandleKeys[V any](m map[handle.ID]V) []handle.ID {
	keys := make([]handle.ID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// toSeconds converts a wall-clock time into the float64 seconds-since-Unix-
// epoch representation the temporal engine and ivalset operate over.
func toSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
