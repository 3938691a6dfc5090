package aggregate

import (
	"cmp"
	"errors"
	"slices"
)

// ErrNoMetrics is returned by RankRelativeToAverage when called without metrics.
var ErrNoMetrics = errors.New("aggregate: at least one metric is required")

// Direction is a sort direction.
type Direction int

const (
	Descending Direction = iota
	Ascending
)

func (d Direction) String() string {
	if d == Ascending {
		return "asc"
	}
	return "desc"
}

// SortKey extracts a nullable metric from a group value.
type SortKey[V any] struct {
	Value     func(V) *float64
	Direction Direction
}

// Desc orders by value, largest first.
func Desc[V any](value func(V) *float64) SortKey[V] {
	return SortKey[V]{Value: value, Direction: Descending}
}

// Asc orders by value, smallest first.
func Asc[V any](value func(V) *float64) SortKey[V] {
	return SortKey[V]{Value: value, Direction: Ascending}
}

// Metric names a nullable value used for relative-to-average ranking.
type Metric[V any] struct {
	Name  string
	Value func(V) *float64
}

// FilterMinSample keeps groups whose sample size is at least minSize. A minSize of
// zero or less keeps every group.
func FilterMinSample[K comparable, V Sampled](groups []Group[K, V], minSize int) []Group[K, V] {
	out := make([]Group[K, V], 0, len(groups))
	for _, g := range groups {
		if g.Value.SampleSize() >= minSize {
			out = append(out, g)
		}
	}
	return out
}

// TopN orders groups by keys and returns the first n. Null metric values
// sort last in either direction. Ties on every key are broken by larger
// sample size first and then by input order, so the result is reproducible.
// An n of zero or less returns all groups. The input slice is not modified.
func TopN[K comparable, V Sampled](groups []Group[K, V], n int, keys ...SortKey[V]) []Group[K, V] {
	out := slices.Clone(groups)
	slices.SortStableFunc(out, func(a, b Group[K, V]) int {
		for _, k := range keys {
			if c := compareNullable(k.Value(a.Value), k.Value(b.Value), k.Direction); c != 0 {
				return c
			}
		}
		return cmp.Compare(b.Value.SampleSize(), a.Value.SampleSize())
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RankRelativeToAverage returns the groups that are strictly above the
// cross-group mean on every metric, together with those means in metric
// order. Means are unweighted and ignore nil values. A group with a nil
// value for any metric never qualifies, nor does any group when a mean is
// nil.
func RankRelativeToAverage[K comparable, V any](groups []Group[K, V], metrics ...Metric[V]) ([]Group[K, V], []*float64, error) {
	if len(metrics) == 0 {
		return nil, nil, ErrNoMetrics
	}

	// pass 1: per-group values
	values := make([][]*float64, len(metrics))
	for m, metric := range metrics {
		values[m] = make([]*float64, len(groups))
		for i, g := range groups {
			values[m][i] = metric.Value(g.Value)
		}
	}

	// pass 2: population means
	means := make([]*float64, len(metrics))
	for m := range metrics {
		means[m] = Mean(values[m])
	}

	out := make([]Group[K, V], 0)
	for i, g := range groups {
		above := true
		for m := range metrics {
			v, mean := values[m][i], means[m]
			if v == nil || mean == nil || *v <= *mean {
				above = false
				break
			}
		}
		if above {
			out = append(out, g)
		}
	}
	return out, means, nil
}

func compareNullable(a, b *float64, dir Direction) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	c := cmp.Compare(*a, *b)
	if dir == Descending {
		c = -c
	}
	return c
}
