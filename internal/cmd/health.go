package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notifyd/notifyd/internal/config"
	"github.com/notifyd/notifyd/internal/health"
	"github.com/notifyd/notifyd/internal/observability"
	"github.com/notifyd/notifyd/internal/output"
)

var healthStrict bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the configured dependencies once",
	Long: `Probe the database and the shared cache once and print a readiness report.

The command exits 0 when dependencies are degraded unless --strict is set, in
which case a degraded report exits with the external-service-unavailable code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		outPath, outDir, err := resolveOutputTargets(cmd)
		if err != nil {
			return err
		}
		if outDir != "" {
			outDir, err = ensureOutDir(outDir)
			if err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("health.%s", outputExtension(format)))
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		return checkHealth(cmd.Context(), cfg, format, outPath, healthStrict)
	},
}

// checkHealth probes every dependency once and writes the report to outPath.
// A degraded report under strict returns an *ExitError after the sink and the
// dependencies are closed.
func checkHealth(ctx context.Context, cfg *config.Config, format output.Format, outPath string, strict bool) error {
	deps, err := openDependencies(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	report := runReadiness(ctx, buildOrchestrator(cfg, deps, nil))

	sink, err := openSink(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	if err := writeReadiness(sink.writer, format, report); err != nil {
		return err
	}

	if observability.CLILogger != nil {
		observability.CLILogger.Debug("Health check complete",
			zap.String("status", report.Status),
			zap.Bool("degraded", report.Degraded))
	}

	if strict && report.Degraded {
		return unhealthyExit(report)
	}
	return nil
}

// runReadiness takes one report and stops any monitor the report started.
func runReadiness(ctx context.Context, orchestrator *health.Orchestrator) health.Readiness {
	defer orchestrator.Close()
	return orchestrator.Readiness(ctx)
}

func writeReadiness(w io.Writer, format output.Format, report health.Readiness) error {
	rendered, err := output.FormatReadiness(format, report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().BoolVar(&healthStrict, "strict", false, "Exit non-zero when any dependency is unhealthy")
	healthCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	healthCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	healthCmd.Flags().String("out-dir", "", "Write output to a directory")
}
