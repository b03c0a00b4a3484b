package normalize

import (
	"slices"

	"github.com/sells-group/roundtable-cli/internal/model"
)

// DistinctValues returns the sorted distinct values of a list field across
// every enriched record.
func DistinctValues(records []model.EventRecord, field string) []string {
	seen := make(map[string]struct{})
	for i := range records {
		values, _ := records[i].Enriched.List(field)
		for _, v := range values {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Batches splits values into consecutive chunks of at most size values.
func Batches(values []string, size int) [][]string {
	if size <= 0 {
		size = len(values)
	}
	var out [][]string
	for chunk := range slices.Chunk(values, max(size, 1)) {
		out = append(out, chunk)
	}
	return out
}

// Close rewrites m so every target is a fixed point: a target that is itself
// a key maps to itself. Chains resolve to their final term; a cycle collapses
// onto its lexicographically smallest member.
func Close(m model.NormalizationMap) model.NormalizationMap {
	out := make(model.NormalizationMap, len(m))
	for k := range m {
		resolve(m, out, k)
	}
	return out
}

func resolve(m, done model.NormalizationMap, k string) string {
	if t, ok := done[k]; ok {
		return t
	}

	var path []string
	onPath := make(map[string]int)
	x := k
	var terminal string
	for {
		if t, ok := done[x]; ok {
			terminal = t
			break
		}
		next, ok := m[x]
		if !ok || next == x {
			terminal = x
			break
		}
		if i, ok := onPath[x]; ok {
			terminal = slices.Min(path[i:])
			break
		}
		onPath[x] = len(path)
		path = append(path, x)
		x = next
	}

	for _, p := range path {
		done[p] = terminal
	}
	if _, ok := m[terminal]; ok {
		done[terminal] = terminal
	}
	return done[k]
}
