package telemetry

import (
	"sort"
)

// Count is the number of events of one kind emitted by one resource.
type Count struct {
	Kind     string `json:"kind"`
	Resource string `json:"resource"`
	Value    int64  `json:"value"`
}

func sortCounts(cs []Count) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Kind != cs[j].Kind {
			return cs[i].Kind < cs[j].Kind
		}
		return cs[i].Resource < cs[j].Resource
	})
}
