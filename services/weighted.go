// services/weighted.go
package services

// Weighted pairs a value with its relative weight.
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// PickWeighted normalizes the weights and does a single cumulative roll.
// The first entry whose cumulative share meets or exceeds the roll wins.
// Returns false when there is nothing positive to pick from.
func PickWeighted[T any](src Source, entries []Weighted[T]) (T, bool) {
	idx := pickIndex(src, entries)
	if idx < 0 {
		var zero T
		return zero, false
	}
	return entries[idx].Value, true
}

func pickIndex[T any](src Source, entries []Weighted[T]) int {
	var total float64
	last := -1
	for i, e := range entries {
		if e.Weight > 0 {
			total += e.Weight
			last = i
		}
	}
	if total <= 0 {
		return -1
	}

	roll := src.Float64()
	var cumulative float64
	for i, e := range entries {
		if e.Weight <= 0 {
			continue
		}
		cumulative += e.Weight / total
		if cumulative >= roll {
			return i
		}
	}
	// Float rounding can leave the sum a hair under 1.
	return last
}
