// Package daemon wires the feed, the dispatcher and its collaborators into the running notifier.
package daemon

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/Brotsalat/zkill-ws-slack/dispatcher"
	"github.com/Brotsalat/zkill-ws-slack/feed"
	"github.com/Brotsalat/zkill-ws-slack/logging"
	"github.com/Brotsalat/zkill-ws-slack/reference"
	"github.com/Brotsalat/zkill-ws-slack/webhook"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Daemon is the assembled notifier.
type Daemon struct {
	cfg        *Config
	conn       *feed.Connection
	dispatcher *dispatcher.Dispatcher
	logger     *logging.Logger

	metricsListener net.Listener // metricsListener is nil unless Metrics.Listen is set.
	registry        *prometheus.Registry
}

// New assembles a Daemon from cfg, which must have been validated.
// If a metrics address is configured, it is bound right away.
func New(cfg *Config, logs *logging.Logging) (*Daemon, error) {
	client, err := reference.NewClient(cfg.Reference)
	if err != nil {
		return nil, errors.Wrap(err, "can't create reference client")
	}

	publisher, err := webhook.NewPublisher(cfg.Webhook, logs.GetChildLogger("webhook"))
	if err != nil {
		return nil, errors.Wrap(err, "can't create webhook publisher")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	d := &Daemon{
		cfg:  cfg,
		conn: feed.NewConnection(cfg.Feed, logs.GetChildLogger("feed")),
		dispatcher: dispatcher.New(
			dispatcher.Config{Watched: cfg.Watch.Entity(), MatchAll: cfg.Watch.All, MaxInFlight: cfg.MaxInFlight},
			reference.NewResolver(client),
			publisher,
			dispatcher.NewMetrics(registry),
			logs.GetChildLogger("dispatcher"),
		),
		logger:   logs.GetLogger(),
		registry: registry,
	}

	if cfg.Metrics.Listen != "" {
		d.metricsListener, err = net.Listen("tcp", cfg.Metrics.Listen)
		if err != nil {
			return nil, errors.Wrapf(err, "can't listen on %s for metrics", cfg.Metrics.Listen)
		}
	}

	return d, nil
}

// MetricsAddr returns the bound metrics address or nil if the endpoint is disabled.
func (d *Daemon) MetricsAddr() net.Addr {
	if d.metricsListener == nil {
		return nil
	}

	return d.metricsListener.Addr()
}

// Run relays kills until ctx is done or the feed connection fails.
// It returns nil after ctx is done and a *feed.ConnectionError if the feed is lost for good.
func (d *Daemon) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if d.metricsListener != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			d.logger.Infow("Serving metrics", zap.Stringer("address", d.metricsListener.Addr()))

			if err := srv.Serve(d.metricsListener); !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server failed")
			}

			return nil
		})
		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// A nil result implies gctx is done, which also stops the metrics server.
		return d.conn.RunWithReconnect(gctx, func(raw []byte) {
			d.dispatcher.Dispatch(gctx, raw)
		})
	})

	err := g.Wait()
	d.drain()

	return err
}

// drain waits up to ShutdownGrace for kills still being processed.
func (d *Daemon) drain() {
	if d.cfg.ShutdownGrace <= 0 {
		return
	}

	done := make(chan struct{})
	go func() {
		d.dispatcher.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.cfg.ShutdownGrace):
		d.logger.Warnw("Exiting with kills still being processed", zap.Duration("grace", d.cfg.ShutdownGrace))
	}
}
