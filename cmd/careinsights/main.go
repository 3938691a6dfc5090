package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ehr/careinsights/internal/analytics/report"
	"github.com/ehr/careinsights/internal/domain/snapshot"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "careinsights",
		Short:        "Hospital analytics reports over encounter, quality and surgical data",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("schema", "", "Postgres schema to read (overrides DB_SCHEMA)")

	root.AddCommand(serveCmd())
	root.AddCommand(reportsCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(exportCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the reporting API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(cmd.Context(), a)
		},
	}
}

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List the available reports and their effective thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := formatFlag(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			engine := newEngine(cfg, newLogger(cfg))
			return report.Write(cmd.OutOrStdout(), format, definitionsTable(engine.Definitions()))
		},
	}
	cmd.Flags().StringP("format", "f", "text", "Output format: text, csv or json")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [id...]",
		Short: "Evaluate reports against the configured data source",
		Long:  "Evaluate one or more reports by ID. With no IDs every report is evaluated.",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := formatFlag(cmd.Flags())
			if err != nil {
				return err
			}
			params, err := paramsFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			for _, id := range args {
				if _, ok := report.Find(id); !ok {
					return fmt.Errorf("%w: %s (run \"careinsights reports\" for the list)", report.ErrUnknownReport, id)
				}
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.ReportTimeout)
			defer cancel()

			snap, err := a.source.Load(ctx)
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			tables, err := a.engine.RunAll(ctx, snap, args, params)
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), format, tables...)
		},
	}
	cmd.Flags().StringP("format", "f", "text", "Output format: text, csv or json")
	cmd.Flags().Int("min-sample", 0, "Override the minimum sample size for every selected report")
	cmd.Flags().Int("top", 0, "Override the row cap for every selected report (0 keeps all rows)")
	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report referential, temporal and coercion problems in the source data",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := formatFlag(cmd.Flags())
			if err != nil {
				return err
			}
			failOnFindings, _ := cmd.Flags().GetBool("fail-on-findings")

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.ReportTimeout)
			defer cancel()

			snap, err := a.source.Load(ctx)
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			qr, err := a.engine.DataQuality(ctx, snap)
			if err != nil {
				return err
			}

			if format == report.FormatJSON {
				err = report.WriteJSON(cmd.OutOrStdout(), qr)
			} else {
				err = report.Write(cmd.OutOrStdout(), format, qr.Tables()...)
			}
			if err != nil {
				return err
			}
			if failOnFindings && len(qr.Findings) > 0 {
				return fmt.Errorf("%d data-quality finding(s)", len(qr.Findings))
			}
			return nil
		},
	}
	cmd.Flags().StringP("format", "f", "text", "Output format: text, csv or json")
	cmd.Flags().Bool("fail-on-findings", false, "Exit non-zero when any finding is reported")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current snapshot as Parquet files",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.source.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			if err := os.MkdirAll(out, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			if err := snapshot.ExportParquet(snap, out); err != nil {
				return err
			}

			counts := snap.Counts()
			a.logger.Info().Str("dir", out).Interface("records", counts).Msg("snapshot exported")
			fmt.Fprintf(cmd.OutOrStdout(), "Exported snapshot from %s to %s\n", snap.Source, out)
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "Directory to write <table>.parquet files into")
	return cmd
}

func formatFlag(flags *pflag.FlagSet) (report.Format, error) {
	raw, _ := flags.GetString("format")
	return report.ParseFormat(raw)
}

// paramsFromFlags turns --min-sample and --top into overrides. Flags left
// at their defaults keep each report's own policy.
func paramsFromFlags(flags *pflag.FlagSet) (report.Params, error) {
	var p report.Params
	if flags.Changed("min-sample") {
		n, _ := flags.GetInt("min-sample")
		if n < 0 {
			return p, fmt.Errorf("--min-sample must not be negative")
		}
		p.MinSample = &n
	}
	if flags.Changed("top") {
		n, _ := flags.GetInt("top")
		if n < 0 {
			return p, fmt.Errorf("--top must not be negative")
		}
		p.Top = &n
	}
	return p, nil
}
