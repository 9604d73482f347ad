package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"DeskSync/internal/usecase"
	"DeskSync/pkg/config"
	xhttp "DeskSync/pkg/http"
	applogger "DeskSync/pkg/logger"
	"DeskSync/pkg/queue"
)

// Stream is the push connection the app owns for its whole lifetime.
type Stream interface {
	Connect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Close() error
}

// App encapsulates the gateway lifecycle: the shared push connection, the
// session manager, the activity queue consumer, and the HTTP server.
type App struct {
	cfg           *config.Config
	logger        *applogger.Logger
	stream        Stream
	sessions      *usecase.SessionManager
	activityQueue *queue.RedisQueue
	httpHandler   xhttp.Handler
	httpServer    *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	stream Stream,
	sessions *usecase.SessionManager,
	activityQueue *queue.RedisQueue,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:           cfg,
		logger:        lgr,
		stream:        stream,
		sessions:      sessions,
		activityQueue: activityQueue,
		httpHandler:   handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect the push channel. A down backend must not keep the gateway
	// from serving polled data, so a failed dial just retries in background.
	if err := a.stream.Connect(ctx); err != nil {
		a.logger.Warn("app: stream connect failed, retrying in background", applogger.Error(err))
		go func() {
			if rerr := a.stream.Reconnect(ctx); rerr != nil {
				a.logger.Error("app: stream reconnect failed", applogger.Error(rerr))
			}
		}()
	}

	// Activity queue consumer
	if a.activityQueue != nil {
		if err := a.activityQueue.Start(); err != nil {
			a.logger.Error("app: activity queue start failed", applogger.Error(err))
		} else {
			a.logger.Info("app: activity queue started")
		}
	}

	// Idle session reaper
	go a.sessions.Sweep(ctx, a.cfg.Sessions.SweepInterval)

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
	}
	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(a.logger),
	)
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("app: http server start failed", applogger.Error(err))
		return err
	}
	a.logger.Info("app: started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("env", a.cfg.Environment))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("app: shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("app: http shutdown error", applogger.Error(err))
	}

	// sessions close their pollers, subscriptions, and pipelines
	a.sessions.Close()

	if err := a.stream.Close(); err != nil {
		a.logger.Warn("app: stream close error", applogger.Error(err))
	}

	if a.activityQueue != nil {
		if err := a.activityQueue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("app: activity queue stop error", applogger.Error(err))
		}
	}

	a.logger.Info("app: shutdown complete")
	return nil
}
