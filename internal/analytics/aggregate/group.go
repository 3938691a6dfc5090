// Package aggregate computes grouped metrics over in-memory record sequences.
//
// Groups are always returned in the order their key was first seen, so the
// same input produces the same output on every run. Functions never mutate
// their inputs and hold no state, which makes them safe to call from
// concurrent report builders against a shared snapshot.
package aggregate

// Sampled is implemented by group values that know how many records they
// summarise. It drives minimum-sample filtering and top-N tie-breaking.
type Sampled interface {
	SampleSize() int
}

// Group pairs a grouping key with its aggregated value.
type Group[K comparable, V any] struct {
	Key   K
	Value V
}

// ---------------------------------------------------------------------------
// Metric values
// ---------------------------------------------------------------------------

// Count is the number of records in a group.
type Count int

func (c Count) SampleSize() int { return int(c) }

// Rate is numerator over denominator. Value is nil when the denominator is
// zero, so "no data" stays distinguishable from a zero rate.
type Rate struct {
	Numerator   int
	Denominator int
	Value       *float64
}

func (r Rate) SampleSize() int { return r.Denominator }

// Average is the mean of the convertible values in a group. Records counts
// every record, Values only those that produced a number.
type Average struct {
	Records int
	Values  int
	Sum     float64
	Mean    *float64
}

func (a Average) SampleSize() int { return a.Records }

// Sum totals the convertible values in a group.
type Sum struct {
	Records int
	Values  int
	Total   float64
}

func (s Sum) SampleSize() int { return s.Records }

// ---------------------------------------------------------------------------
// Grouping
// ---------------------------------------------------------------------------

// Summarize folds records into one accumulator per key. It is the building
// block for the other grouping functions and for reports that track several
// metrics per group.
func Summarize[T any, K comparable, V any](records []T, key func(T) K, fold func(acc *V, rec T)) []Group[K, V] {
	index := make(map[K]int)
	groups := make([]Group[K, V], 0)

	for _, rec := range records {
		k := key(rec)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[K, V]{Key: k})
		}
		fold(&groups[i].Value, rec)
	}
	return groups
}

// CountBy counts records per key.
func CountBy[T any, K comparable](records []T, key func(T) K) []Group[K, Count] {
	return Summarize(records, key, func(acc *Count, _ T) { *acc++ })
}

// RateBy computes, per key, how many records satisfy predicate out of all
// records with that key.
func RateBy[T any, K comparable](records []T, key func(T) K, predicate func(T) bool) []Group[K, Rate] {
	groups := Summarize(records, key, func(acc *Rate, rec T) {
		acc.Denominator++
		if predicate(rec) {
			acc.Numerator++
		}
	})
	for i := range groups {
		r := &groups[i].Value
		r.Value = Ratio(r.Numerator, r.Denominator)
	}
	return groups
}

// AverageBy computes the mean of value per key. Records for which value
// reports false are counted but excluded from the mean; a group without
// any convertible value has a nil Mean.
func AverageBy[T any, K comparable](records []T, key func(T) K, value func(T) (float64, bool)) []Group[K, Average] {
	groups := Summarize(records, key, func(acc *Average, rec T) {
		acc.Records++
		if v, ok := value(rec); ok {
			acc.Values++
			acc.Sum += v
		}
	})
	for i := range groups {
		a := &groups[i].Value
		a.Mean = SafeDivide(a.Sum, float64(a.Values))
	}
	return groups
}

// SumBy totals value per key, skipping records for which value reports false.
func SumBy[T any, K comparable](records []T, key func(T) K, value func(T) (float64, bool)) []Group[K, Sum] {
	return Summarize(records, key, func(acc *Sum, rec T) {
		acc.Records++
		if v, ok := value(rec); ok {
			acc.Values++
			acc.Total += v
		}
	})
}
