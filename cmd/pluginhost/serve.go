package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/srediag/plugin-dylib/adapter"
	"github.com/srediag/plugin-dylib/pkg/plugin"
)

const (
	FlagAddr       = "addr"
	FlagMinPlugins = "min-plugins"
)

func newServeCmd(h *host) *cobra.Command {
	var (
		addr       string
		minPlugins int
	)
	cmd := &cobra.Command{
		Use:   "serve [library...]",
		Short: "Load libraries and serve health and metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return h.serve(ctx, addr, minPlugins, args)
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().StringVar(&addr, FlagAddr, ":8086", "listen address for /live, /ready and /metrics")
	cmd.Flags().IntVar(&minPlugins, FlagMinPlugins, 1, "plugins required before /ready succeeds")
	return cmd
}

func (h *host) serve(ctx context.Context, addr string, minPlugins int, args []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	otelObserver, err := adapter.NewOTelObserver(otel.Meter("pluginhost"))
	if err != nil {
		return err
	}
	m, err := h.loadManager(ctx, args,
		plugin.WithTracer(otel.Tracer("pluginhost")),
		plugin.WithObserver(adapter.NewPrometheusObserver(reg, "pluginhost")),
		plugin.WithObserver(otelObserver),
		plugin.WithObserver(adapter.NewAuditObserver(h.logger)),
	)
	if err != nil {
		return err
	}

	health := healthcheck.NewMetricsHandler(reg, "pluginhost")
	adapter.Register(health, m, minPlugins)

	mux := http.NewServeMux()
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/ready", health.ReadyEndpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("serving", zap.String("addr", addr), zap.Int("plugins", m.Len()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		h.logger.Info("shutting down")
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		h.logger.Warn("http shutdown failed", zap.Error(serr))
	}
	return errors.Join(err, m.Close())
}
