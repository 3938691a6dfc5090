// Package integrity finds referential and logical inconsistencies in a
// snapshot. Findings are returned as data; none of the checks fail on bad
// input.
package integrity

import (
	"time"

	"github.com/ehr/careinsights/internal/analytics/aggregate"
	"github.com/ehr/careinsights/internal/analytics/coerce"
)

// FindingType classifies a data-quality finding.
type FindingType string

const (
	FindingOrphanReference FindingType = "orphan_reference"
	FindingTemporalOrder   FindingType = "temporal_order"
	FindingOutOfRange      FindingType = "out_of_range"
	FindingUnconvertible   FindingType = "unconvertible_value"
)

// ---------------------------------------------------------------------------
// Orphans
// ---------------------------------------------------------------------------

type orphanConfig struct {
	allowNull bool
}

// OrphanOption configures FindOrphans.
type OrphanOption func(*orphanConfig)

// AllowNullReference treats a child with no foreign key as valid. Use it for
// optional references; by default a missing key is an orphan.
func AllowNullReference() OrphanOption {
	return func(c *orphanConfig) { c.allowNull = true }
}

// FindOrphans returns the children whose foreign key matches no parent's
// primary key, in input order. fk reports false when the child's key is null.
func FindOrphans[C, P any, K comparable](children []C, parents []P, fk func(C) (K, bool), pk func(P) K, opts ...OrphanOption) []C {
	var cfg orphanConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	known := make(map[K]struct{}, len(parents))
	for _, p := range parents {
		known[pk(p)] = struct{}{}
	}

	orphans := make([]C, 0)
	for _, c := range children {
		k, ok := fk(c)
		if !ok {
			if !cfg.allowNull {
				orphans = append(orphans, c)
			}
			continue
		}
		if _, found := known[k]; !found {
			orphans = append(orphans, c)
		}
	}
	return orphans
}

// ---------------------------------------------------------------------------
// Temporal and range checks
// ---------------------------------------------------------------------------

// TemporalViolation is a record whose end precedes its start.
type TemporalViolation[T any] struct {
	Record T
	Start  time.Time
	End    time.Time
}

// FindTemporalViolations returns records whose end is strictly before their
// start. Records where either value does not parse cannot be evaluated and
// are left out.
func FindTemporalViolations[T any](c *coerce.Coercer, records []T, start, end func(T) *string) []TemporalViolation[T] {
	out := make([]TemporalViolation[T], 0)
	for _, rec := range records {
		s, ok := c.Time(start(rec))
		if !ok {
			continue
		}
		e, ok := c.Time(end(rec))
		if !ok {
			continue
		}
		if e.Before(s) {
			out = append(out, TemporalViolation[T]{Record: rec, Start: s, End: e})
		}
	}
	return out
}

// RangeViolation is a record whose numeric value is below the allowed minimum.
type RangeViolation[T any] struct {
	Record T
	Value  float64
}

// FindRangeViolations returns records whose value parses and is below floor.
func FindRangeViolations[T any](c *coerce.Coercer, records []T, value func(T) *string, floor float64) []RangeViolation[T] {
	out := make([]RangeViolation[T], 0)
	for _, rec := range records {
		v, ok := c.Float(value(rec))
		if ok && v < floor {
			out = append(out, RangeViolation[T]{Record: rec, Value: v})
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Coercion yield
// ---------------------------------------------------------------------------

// Yield summarises how well a field converts to its target kind.
type Yield struct {
	Field         string      `json:"field"`
	Kind          coerce.Kind `json:"kind"`
	Total         int         `json:"total"`
	Converted     int         `json:"converted"`
	Null          int         `json:"null"`
	Unconvertible int         `json:"unconvertible"`
	YieldRate     *float64    `json:"yield_rate"`
}

// Failed is the number of records that did not convert, null or not.
func (y Yield) Failed() int { return y.Null + y.Unconvertible }

// CoercionFailureSummary coerces field on every record and counts the
// outcomes. YieldRate is converted over total, nil for an empty input.
func CoercionFailureSummary[T any](c *coerce.Coercer, records []T, name string, field func(T) *string, kind coerce.Kind) (Yield, error) {
	y := Yield{Field: name, Kind: kind, Total: len(records)}
	if _, err := c.Check(nil, kind); err != nil {
		return Yield{}, err
	}
	for _, rec := range records {
		outcome, err := c.Check(field(rec), kind)
		if err != nil {
			return Yield{}, err
		}
		switch outcome {
		case coerce.OutcomeConverted:
			y.Converted++
		case coerce.OutcomeNull:
			y.Null++
		default:
			y.Unconvertible++
		}
	}
	y.YieldRate = aggregate.Ratio(y.Converted, y.Total)
	return y, nil
}
