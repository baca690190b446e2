package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/aetherlearn/internal/bus"
	"github.com/loqalabs/aetherlearn/internal/config"
	"github.com/loqalabs/aetherlearn/internal/lectures"
	"github.com/loqalabs/aetherlearn/internal/natsserver"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const pruneInterval = 6 * time.Hour

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	stack       *Stack
	httpServer  *http.Server
	natsServer  *natsserver.EmbeddedServer
	bus         *bus.Client
	lectureSvc  *lectures.Service
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start runs the runtime until ctx is canceled.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	stack, err := NewStack(ctx, r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build lecture pipeline: %w", err)
	}
	r.stack = stack

	if r.cfg.Bus.Enabled {
		if err := r.startBus(ctx); err != nil {
			r.stop()
			return err
		}
	}

	api := &api{cfg: r.cfg, stack: stack, metrics: metricsHandler, ready: r.ready.Load, logger: r.logger.With(slog.String("component", "http"))}
	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(api.routes(), "aetherlearn-http"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	r.wg.Add(1)
	go r.pruneJournal(ctx)

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr), slog.String("output", r.cfg.Output.Root))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()
	r.stop()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) startBus(ctx context.Context) error {
	busCfg := r.cfg.Bus
	if busCfg.Embedded {
		srv, err := natsserver.Start(busCfg, r.logger)
		if err != nil {
			return err
		}
		r.natsServer = srv
		busCfg.Servers = []string{srv.ClientURL()}
	}

	client, err := bus.Connect(ctx, busCfg, r.logger.With(slog.String("component", "bus")))
	if err != nil {
		return err
	}
	r.bus = client

	timeout := time.Duration(r.cfg.HTTP.GenerateTimeoutSecond) * time.Second
	r.lectureSvc = lectures.NewService(ctx, client, r.stack.Pipeline, timeout, r.logger)
	return r.lectureSvc.Start()
}

// stop releases everything started after telemetry, in reverse order.
func (r *Runtime) stop() {
	if r.lectureSvc != nil {
		r.lectureSvc.Close()
	}
	r.bus.Close()
	r.natsServer.Shutdown()
	if r.stack != nil {
		if err := r.stack.Close(); err != nil {
			r.logger.Error("pipeline shutdown error", slog.String("error", err.Error()))
		}
	}
}

func (r *Runtime) pruneJournal(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.stack.Journal.Prune(ctx); err != nil {
				r.logger.Warn("journal prune failed", slog.String("error", err.Error()))
			}
		}
	}
}
