package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "CustodianSync/internal/domain/repository"
	"CustodianSync/internal/registry"
	"CustodianSync/internal/usecase"
	pkgch "CustodianSync/pkg/clickhouse"
	"CustodianSync/pkg/config"
	xhttp "CustodianSync/pkg/http"
	pkgkafka "CustodianSync/pkg/kafka"
	applogger "CustodianSync/pkg/logger"
	"CustodianSync/pkg/queue"

	"github.com/labstack/echo/v4"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	registry   *registry.Registry
	collector  *usecase.MetricCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	reconQueue *queue.RedisQueue
	chClient   *pkgch.Client
	feedStore  drepo.FeedStore
	pub        drepo.EventPublisher

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	reg *registry.Registry,
	collector *usecase.MetricCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	reconQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	feedStore drepo.FeedStore,
	pub drepo.EventPublisher,
) *App {
	return &App{
		cfg:        cfg,
		registry:   reg,
		collector:  collector,
		consumer:   consumer,
		kh:         kh,
		reconQueue: reconQueue,
		chClient:   chClient,
		feedStore:  feedStore,
		pub:        pub,
	}
}

// SetHTTPHandler allows DI to inject the HTTP route set.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// RouteSet registers multiple handlers as one.
type RouteSet []xhttp.Handler

func (rs RouteSet) RegisterRoutes(e *echo.Echo) {
	for _, h := range rs {
		h.RegisterRoutes(e)
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// init app logger (console info by default)
	l, _ := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})

	// Ensure analytics tables exist before taking traffic.
	if a.feedStore != nil {
		initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.feedStore.Init(initCtx); err != nil {
			initCancel()
			l.Error("feed store init error", applogger.Error(err))
			return err
		}
		initCancel()
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start connection health monitoring
	go a.registry.RunMonitor(ctx, a.cfg.Custodian.MonitorInterval)
	l.Info("connection monitor started",
		applogger.Duration("interval", a.cfg.Custodian.MonitorInterval))

	// Start metric collector when a stream is configured
	if a.collector != nil && a.cfg.Correlation.Stream.URL != "" {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("metric collector started",
			applogger.Strings("profiles", a.cfg.Correlation.Stream.Profiles))
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start queue workers for async reconciliation runs
	if a.reconQueue != nil {
		if err := a.reconQueue.Start(); err != nil {
			l.Error("queue start error", applogger.Error(err))
			return err
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log.Printf("failed to create logger: %v", err)
		return err
	}
	l.Info("shutting down...")

	// Stop collector (pipeline + stream)
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Stop queue workers, draining in-flight jobs
	if a.reconQueue != nil {
		if err := a.reconQueue.Stop(ctx); err != nil {
			l.Warn("queue stop error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			l.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
