package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mchroma/internal/blob"
	"mchroma/internal/config"
	"mchroma/internal/core"
	"mchroma/pkg/domain"
)

// app carries the state shared by every subcommand.
type app struct {
	stdout, stderr io.Writer

	configPaths []string
	verbose     bool
	spans       bool
	metrics     bool

	settings config.Settings
	logger   *zap.Logger
	registry *prometheus.Registry
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "mchroma",
		Short: "Chromatogram peak picking and integration",
		Long: `mchroma reads detector exports (one integer count per line, with an
optional "Sample ID:" line), finds and integrates peaks, and writes peak tables.

Examples:
  mchroma analyze run1.txt run2.txt --threshold 200   # autopick every file
  mchroma detect run1.txt --at 4.2 --at 7.9            # one peak per crest time
  mchroma export run1.txt --threshold 200              # publish the table to the blob store
  mchroma exports --keep 5                             # drop all but the newest five exports
  mchroma config --config settings.yaml                # print effective settings`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringArrayVarP(&a.configPaths, "config", "c", nil, "settings file (YAML, or legacy .cfg); repeatable, later files win")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	flags.BoolVar(&a.spans, "spans", false, "write one JSON line per operation span to stderr")
	flags.BoolVar(&a.metrics, "metrics", false, "print operation metrics to stderr on exit")

	root.AddCommand(
		newAnalyzeCmd(a),
		newDetectCmd(a),
		newExportCmd(a),
		newExportsCmd(a),
		newConfigCmd(a),
		newStepCmd(a, "undo", "Step the persisted session back one state", (*core.Service).Undo),
		newStepCmd(a, "redo", "Step the persisted session forward one state", (*core.Service).Redo),
	)
	return root
}

func (a *app) setup() error {
	settings, err := config.Load(a.configPaths...)
	if err != nil {
		return err
	}
	a.settings = settings

	cfg := zap.NewProductionConfig()
	if a.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	a.logger = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg.EncoderConfig),
		zapcore.AddSync(a.stderr),
		cfg.Level,
	)).Named("mchroma")
	a.registry = prometheus.NewRegistry()
	return nil
}

func (a *app) teardown() error {
	if a.metrics && a.registry != nil {
		families, err := a.registry.Gather()
		if err != nil {
			return fmt.Errorf("gather metrics: %w", err)
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(a.stderr, mf); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
		}
	}
	if a.logger != nil {
		// Sync on a plain writer may report an unsupported operation.
		_ = a.logger.Sync()
	}
	return nil
}

// session opens the configured stores and builds a service over them. The
// returned close func releases the session store.
func (a *app) session(ctx context.Context, withBlobs bool) (*core.Service, func() error, error) {
	sessions, err := core.OpenSessionStore(ctx, a.settings.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}
	rec, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		_ = sessions.Close()
		return nil, nil, err
	}
	opts := []core.ServiceOption{
		core.WithSettings(a.settings),
		core.WithLogger(core.NewZapLogger(a.logger)),
		core.WithMetricsRecorder(rec),
		core.WithSessionStore(sessions),
	}
	if a.spans {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(a.stderr)))
	}
	if withBlobs {
		store, err := blob.Open(ctx, a.settings.Blob)
		if err != nil {
			_ = sessions.Close()
			return nil, nil, fmt.Errorf("open blob store: %w", err)
		}
		opts = append(opts, core.WithBlobStore(store))
	}
	svc, err := core.NewService(ctx, opts...)
	if err != nil {
		_ = sessions.Close()
		return nil, nil, err
	}
	return svc, sessions.Close, nil
}

// report prints non-blocking issues and turns a blocked result into an error.
func (a *app) report(res domain.Result) error {
	if res.HasBlocking() {
		return errors.New(res.Messages())
	}
	for _, is := range res.Issues {
		if _, err := fmt.Fprintf(a.stderr, "%s: %s\n", is.Severity, is.Message); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) checked(res domain.Result, err error) error {
	if err != nil {
		return err
	}
	return a.report(res)
}

func closeWith(closeFn func() error, err *error) {
	if cerr := closeFn(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close session store: %w", cerr)
	}
}
