package main

import (
	"context"
	"time"

	"fraud-gate/pkg/api"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the decision API over HTTP",
		Long: `Start the HTTP API. The model is loaded once at startup; if that fails the
server still starts, reports not-ready on /ready and answers 503 on
/v1/classify until it is restarted with a loadable artifact.`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}

	cmd.Flags().String("address", api.DefaultServerConfig().Address, "listen address")
	_ = a.v.BindPFlag("server.address", cmd.Flags().Lookup("address"))

	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	collector, err := a.collector()
	if err != nil {
		return err
	}
	d, err := a.detector(collector)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			a.logger.Warn("memo close failed", zap.Error(err))
		}
	}()

	if err := d.Engine().Available(); err != nil {
		a.logger.Error("model unavailable, serving without decisions",
			zap.String("path", a.cfg.ModelPath),
			zap.Error(err),
		)
	} else {
		m, _ := d.Engine().Handle().Model()
		a.logger.Info("model loaded",
			zap.String("path", m.Path),
			zap.String("kind", m.Kind),
			zap.String("version", m.Version),
			zap.String("digest", m.Digest),
		)
	}

	server := api.NewServer(d, collector, a.cfg.Server)
	if err := server.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	a.logger.Info("server stopped")
	return nil
}
