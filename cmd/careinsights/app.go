package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/careinsights/internal/analytics/coerce"
	"github.com/ehr/careinsights/internal/analytics/report"
	"github.com/ehr/careinsights/internal/config"
	"github.com/ehr/careinsights/internal/domain/snapshot"
	"github.com/ehr/careinsights/internal/platform/db"
)

// app bundles what every data-reading command needs.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	engine *report.Engine
	kind   snapshot.Kind
	source snapshot.Source
	pool   *pgxpool.Pool
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.ValidateOverrides(reportIDs()...); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg)
	kind, err := snapshot.ParseKind(cfg.DataSource)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		engine: newEngine(cfg, logger),
		kind:   kind,
	}
	if err := a.openSource(cmd.Context()); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openSource(ctx context.Context) error {
	switch a.kind {
	case snapshot.KindPostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:             a.cfg.DatabaseURL,
			MaxConns:        a.cfg.DBMaxConns,
			MinConns:        a.cfg.DBMinConns,
			ApplicationName: "careinsights",
		})
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.pool = pool
		a.source = snapshot.NewPGSource(pool, a.cfg.DBSchema)
		a.logger.Info().Str("schema", a.cfg.DBSchema).Msg("connected to database")
	case snapshot.KindCSV:
		a.source = snapshot.NewCSVSource(a.cfg.DataDir)
	case snapshot.KindParquet:
		a.source = snapshot.NewParquetSource(a.cfg.DataDir)
	}
	return nil
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if schema, _ := cmd.Flags().GetString("schema"); schema != "" {
		cfg.DBSchema = schema
	}
	return cfg, nil
}

// newLogger writes to stderr so report output on stdout stays clean.
func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

func newEngine(cfg *config.Config, logger zerolog.Logger) *report.Engine {
	var opts []coerce.Option
	if len(cfg.TruthyLiterals) > 0 {
		opts = append(opts, coerce.WithTruthyLiterals(cfg.TruthyLiterals...))
	}
	if len(cfg.FalsyLiterals) > 0 {
		opts = append(opts, coerce.WithFalsyLiterals(cfg.FalsyLiterals...))
	}
	if len(cfg.DatetimeLayouts) > 0 {
		opts = append(opts, coerce.WithDatetimeLayouts(cfg.DatetimeLayouts...))
	}

	return report.NewEngine(
		report.WithCoercer(coerce.New(opts...)),
		report.WithPolicy(policyFromConfig(cfg)),
		report.WithLogger(logger),
	)
}

func reportIDs() []string {
	defs := report.Definitions()
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	return ids
}

// policyFromConfig collects MIN_SAMPLE_<ID> and TOP_<ID> overrides.
func policyFromConfig(cfg *config.Config) report.Policy {
	policy := report.Policy{}
	for _, def := range report.Definitions() {
		minSample, top := cfg.ReportOverride(def.ID)
		if minSample == nil && top == nil {
			continue
		}
		policy[def.ID] = report.Override{MinSample: minSample, Top: top}
	}
	return policy
}

// definitionsTable lists report definitions in the same shape as a report.
func definitionsTable(defs []report.Definition) *report.Table {
	t := &report.Table{
		ID:    "reports",
		Title: "Available Reports",
		Columns: []report.Column{
			{Key: "id", Label: "ID", Type: report.ColumnText},
			{Key: "title", Label: "Title", Type: report.ColumnText},
			{Key: "min_sample", Label: "Min Sample", Type: report.ColumnCount},
			{Key: "top", Label: "Top", Type: report.ColumnText},
			{Key: "description", Label: "Description", Type: report.ColumnText},
		},
	}
	for _, d := range defs {
		top := "all"
		if d.Top > 0 {
			top = strconv.Itoa(d.Top)
		}
		t.Rows = append(t.Rows, report.Row{d.ID, d.Title, d.MinSample, top, d.Description})
	}
	return t
}
