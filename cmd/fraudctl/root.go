package main

import (
	"fmt"

	"fraud-gate/internal/config"
	"fraud-gate/pkg/detector"
	"fraud-gate/pkg/engine"
	"fraud-gate/pkg/logging"
	"fraud-gate/pkg/metrics"
	"fraud-gate/pkg/metrics/memory"
	promcollector "fraud-gate/pkg/metrics/prometheus"
	"fraud-gate/pkg/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	logger  *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "fraudctl",
		Short: "Transaction fraud decision engine",
		Long: `fraudctl encodes transactions into the classifier's feature vector and
returns a FRAUD or SAFE decision. When no model is loaded it reports that no
decision is available; it never falls back to SAFE.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./config.yaml if present)")
	flags.String("model", defaults.ModelPath, "classifier artifact path")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (json, console)")

	_ = a.v.BindPFlag("model_path", flags.Lookup("model"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))

	cmd.AddCommand(a.serveCmd(), a.classifyCmd(), a.encodeCmd())
	return cmd
}

func (a *app) setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	logging.SetGlobal(logger)
	a.logger = logger.Named("fraudctl")
	return nil
}

// collector builds the configured metrics backend.
func (a *app) collector() (metrics.Collector, error) {
	switch a.cfg.Metrics.Backend {
	case config.MetricsPrometheus:
		pc := promcollector.NewPrometheusCollector(a.cfg.Metrics.Namespace)
		if err := pc.Register(prometheus.DefaultRegisterer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		return pc, nil
	case config.MetricsMemory:
		return memory.NewMemoryCollector(), nil
	default:
		return metrics.NoOpCollector{}, nil
	}
}

// detector wires handle, engine and memo. The model is loaded lazily.
func (a *app) detector(collector metrics.Collector) (*detector.Detector, error) {
	handle := model.NewHandleWithMetrics(model.FileLoader(a.cfg.ModelPath), collector)
	e := engine.NewEngineWithMetrics(handle, collector)

	memo, err := detector.BuildMemo(a.cfg.Memo, collector)
	if err != nil {
		return nil, fmt.Errorf("build memo: %w", err)
	}

	opts := []detector.Option{detector.WithLogger(a.logger)}
	if memo != nil {
		opts = append(opts, detector.WithMemo(memo))
	}
	return detector.New(e, opts...), nil
}
