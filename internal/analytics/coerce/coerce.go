// Package coerce converts raw textual field encodings into typed values.
//
// Every conversion is total: a value that cannot be converted is reported as
// such through the boolean result and never as an error or panic. The only
// error the package returns is ErrUnknownKind, which indicates a caller bug.
package coerce

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownKind is returned when a caller asks for a target kind the
// coercer does not support.
var ErrUnknownKind = errors.New("coerce: unknown target kind")

// Kind is the target type of a coercion.
type Kind string

const (
	KindBoolean  Kind = "boolean"
	KindDatetime Kind = "datetime"
	KindNumeric  Kind = "numeric"
)

// ParseKind maps a kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindBoolean, KindDatetime, KindNumeric:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Outcome classifies a single raw value against a target kind.
type Outcome int

const (
	OutcomeConverted Outcome = iota
	OutcomeNull
	OutcomeUnconvertible
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConverted:
		return "converted"
	case OutcomeNull:
		return "null"
	case OutcomeUnconvertible:
		return "unconvertible"
	}
	return "unknown"
}

// DefaultTruthyLiterals is the closed set of strings accepted as true.
// Matching is exact and case-sensitive.
var DefaultTruthyLiterals = []string{"1", "Y", "Yes", "TRUE"}

// DefaultFalsyLiterals are strings recognised as an explicit false. They
// only affect data-quality yield; Bool treats every non-truthy value as false.
var DefaultFalsyLiterals = []string{"0", "N", "No", "FALSE"}

// DefaultDatetimeLayouts are tried in order until one parses.
var DefaultDatetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// Coercer holds the literal sets and layouts used for conversion. It is
// immutable once built and may be shared between goroutines.
type Coercer struct {
	truthy   map[string]struct{}
	falsy    map[string]struct{}
	layouts  []string
	location *time.Location
}

// Option configures a Coercer.
type Option func(*Coercer)

// WithTruthyLiterals replaces the truthy literal set.
func WithTruthyLiterals(literals ...string) Option {
	return func(c *Coercer) {
		c.truthy = toSet(literals)
	}
}

// WithFalsyLiterals replaces the falsy literal set.
func WithFalsyLiterals(literals ...string) Option {
	return func(c *Coercer) {
		c.falsy = toSet(literals)
	}
}

// WithDatetimeLayouts replaces the accepted datetime layouts.
func WithDatetimeLayouts(layouts ...string) Option {
	return func(c *Coercer) {
		if len(layouts) > 0 {
			c.layouts = append([]string(nil), layouts...)
		}
	}
}

// WithLocation sets the location used for layouts without a zone offset.
func WithLocation(loc *time.Location) Option {
	return func(c *Coercer) {
		if loc != nil {
			c.location = loc
		}
	}
}

// New builds a Coercer from the defaults and the given options.
func New(opts ...Option) *Coercer {
	c := &Coercer{
		truthy:   toSet(DefaultTruthyLiterals),
		falsy:    toSet(DefaultFalsyLiterals),
		layouts:  append([]string(nil), DefaultDatetimeLayouts...),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bool reports whether raw is exactly one of the truthy literals. Null,
// empty, differently-cased and malformed input are all false.
func (c *Coercer) Bool(raw *string) bool {
	if raw == nil {
		return false
	}
	_, ok := c.truthy[*raw]
	return ok
}

// Time parses raw against the configured layouts. The second result is
// false when raw is null, blank or matches no layout.
func (c *Coercer) Time(raw *string) (time.Time, bool) {
	s, ok := trimmed(raw)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range c.layouts {
		if t, err := time.ParseInLocation(layout, s, c.location); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Float parses raw as a finite float64.
func (c *Coercer) Float(raw *string) (float64, bool) {
	s, ok := trimmed(raw)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Check classifies raw against kind. For booleans a value counts as
// converted when it is either a truthy or a falsy literal.
func (c *Coercer) Check(raw *string, kind Kind) (Outcome, error) {
	var ok bool
	switch kind {
	case KindBoolean:
		if raw == nil {
			return OutcomeNull, nil
		}
		_, t := c.truthy[*raw]
		_, f := c.falsy[*raw]
		ok = t || f
	case KindDatetime:
		_, ok = c.Time(raw)
	case KindNumeric:
		_, ok = c.Float(raw)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	switch {
	case ok:
		return OutcomeConverted, nil
	case raw == nil || (kind != KindBoolean && strings.TrimSpace(*raw) == ""):
		return OutcomeNull, nil
	default:
		return OutcomeUnconvertible, nil
	}
}

func trimmed(raw *string) (string, bool) {
	if raw == nil {
		return "", false
	}
	s := strings.TrimSpace(*raw)
	return s, s != ""
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
