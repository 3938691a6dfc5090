// Package report assembles named result tables from a snapshot by composing
// the coercion, aggregation and integrity packages.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/careinsights/internal/analytics/coerce"
	"github.com/ehr/careinsights/internal/domain/snapshot"
	"github.com/ehr/careinsights/internal/platform/metrics"
)

// ErrUnknownReport is returned for a report ID that is not registered.
var ErrUnknownReport = errors.New("report: unknown report")

// Override replaces a report's default threshold or row cap. Nil fields
// keep the default.
type Override struct {
	MinSample *int `json:"min_sample,omitempty"`
	Top       *int `json:"top,omitempty"`
}

// Params are per-call overrides; they win over the engine policy.
type Params = Override

// Policy holds per-report overrides configured for an engine.
type Policy map[string]Override

// Engine evaluates reports. It keeps no mutable state and may be shared
// between goroutines.
type Engine struct {
	coercer *coerce.Coercer
	policy  Policy
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCoercer sets the coercer used for raw fields.
func WithCoercer(c *coerce.Coercer) Option {
	return func(e *Engine) {
		if c != nil {
			e.coercer = c
		}
	}
}

// WithPolicy sets per-report overrides.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func withClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an Engine. Without options it uses the default coercer,
// the registry thresholds and a disabled logger.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		coercer: coerce.New(),
		policy:  Policy{},
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Coercer returns the coercer the engine evaluates raw fields with.
func (e *Engine) Coercer() *coerce.Coercer { return e.coercer }

// Definitions returns the registered reports with the engine policy applied.
func (e *Engine) Definitions() []Definition {
	defs := Definitions()
	for i := range defs {
		l := e.limits(defs[i], Params{})
		defs[i].MinSample, defs[i].Top = l.minSample, l.top
	}
	return defs
}

func (e *Engine) limits(def Definition, p Params) limits {
	l := limits{minSample: def.MinSample, top: def.Top}
	if o, ok := e.policy[def.ID]; ok {
		if o.MinSample != nil {
			l.minSample = *o.MinSample
		}
		if o.Top != nil {
			l.top = *o.Top
		}
	}
	if p.MinSample != nil {
		l.minSample = *p.MinSample
	}
	if p.Top != nil {
		l.top = *p.Top
	}
	return l
}

// Run evaluates one report against snap.
func (e *Engine) Run(ctx context.Context, snap *snapshot.Snapshot, id string, p Params) (*Table, error) {
	def, ok := Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReport, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := e.now()
	l := e.limits(def, p)
	rows, err := def.build(e.coercer, snap, l)
	metrics.ObserveReport(id, started, len(rows), err)
	if err != nil {
		e.logger.Error().Err(err).Str("report", id).Msg("report evaluation failed")
		return nil, fmt.Errorf("%s: %w", id, err)
	}

	e.logger.Debug().
		Str("report", id).
		Int("rows", len(rows)).
		Int("min_sample", l.minSample).
		Int("top", l.top).
		Dur("duration", e.now().Sub(started)).
		Msg("report evaluated")

	return &Table{
		ID:          def.ID,
		Title:       def.Title,
		Columns:     def.Columns,
		Rows:        rows,
		MinSample:   l.minSample,
		Top:         l.top,
		Source:      snap.Source,
		RunID:       uuid.New(),
		GeneratedAt: e.now().UTC(),
	}, nil
}

// RunAll evaluates the given reports concurrently against the same snapshot
// and returns the tables in the order requested. No IDs means every report.
func (e *Engine) RunAll(ctx context.Context, snap *snapshot.Snapshot, ids []string, p Params) ([]*Table, error) {
	if len(ids) == 0 {
		for _, d := range registry {
			ids = append(ids, d.ID)
		}
	}
	for _, id := range ids {
		if _, ok := Find(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownReport, id)
		}
	}

	tables := make([]*Table, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			t, err := e.Run(gctx, snap, id, p)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}
