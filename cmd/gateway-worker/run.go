package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/gateway-worker/internal/api"
	"github.com/shaiso/gateway-worker/internal/config"
	"github.com/shaiso/gateway-worker/internal/domain"
	"github.com/shaiso/gateway-worker/internal/gateway"
	"github.com/shaiso/gateway-worker/internal/handler"
	"github.com/shaiso/gateway-worker/internal/mq"
	"github.com/shaiso/gateway-worker/internal/service"
	"github.com/shaiso/gateway-worker/internal/sysinfo"
	"github.com/shaiso/gateway-worker/internal/telemetry"
)

const (
	shutdownTimeout = 15 * time.Second
	reportFlush     = 3 * time.Second
)

var (
	errStopped       = errors.New("service stopped")
	errUncaughtFault = errors.New("uncaught exception")
)

// run собирает зависимости и работает до сигнала завершения.
func run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// Логи уровня LOG_REPORT_LEVEL и выше дублируются в gateway
	var extra []slog.Handler
	var report *telemetry.ReportHandler
	if cfg.LogReport {
		report = telemetry.NewReportHandler(telemetry.ReportConfig{
			URL:    cfg.ReportURL(),
			APIKey: cfg.GatewayKey,
			Level:  cfg.LogReportLevel,
			OnDrop: metrics.ReportDropped,
		})
		extra = append(extra, report)
	}

	logger := telemetry.SetupLogger(extra...)
	logger.Info("starting gateway-worker", "version", version, "service_id", cfg.ServiceID)

	if report != nil {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), reportFlush)
			defer cancel()
			if err := report.Close(flushCtx); err != nil {
				logger.Debug("flush log reports", "error", err)
			}
		}()
	}

	routes, err := config.LoadRoutes(cfg.RoutesFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("routes file not found, registering with an empty routing table", "file", cfg.RoutesFile)
	case err != nil:
		return err
	}

	identity := domain.ServiceIdentity{
		ServiceID: cfg.ServiceID,
		MachineID: sysinfo.MachineID(),
		Routes:    routes,
	}

	router := handler.DefaultRouter()

	gw := gateway.NewClient(gateway.Config{
		BaseURL: cfg.GatewayServer,
		APIKey:  cfg.GatewayKey,
		Timeout: cfg.HTTPTimeout,
		Probe:   sysinfo.NewProbe(),
		Logger:  logger,
	})

	// Worker читает сессию через lifecycle; до регистрации сообщений нет
	var lifecycle *service.Lifecycle
	worker := mq.NewWorker(mq.WorkerConfig{
		Handler:  router,
		Session:  func() (domain.Session, bool) { return lifecycle.Session() },
		Observer: metrics,
		Logger:   logger,
	})

	broker := mq.NewManager(mq.ManagerConfig{
		Processor:      worker,
		ReconnectDelay: cfg.ReconnectDelay,
		Keepalive:      cfg.AMQPHeartbeat,
		Prefetch:       cfg.Prefetch,
		Queue: mq.QueueOptions{
			AutoDelete: cfg.AutoDelete,
			MessageTTL: cfg.MessageTTL,
		},
		Observer: metrics,
		Logger:   logger,
	})

	lifecycle = service.New(service.Config{
		Gateway:           gw,
		Broker:            broker,
		Identity:          identity,
		Initializer:       routesInit(router, identity.Routes),
		RegisterBackoff:   cfg.RegisterBackoff,
		BrokerGrace:       cfg.BrokerGrace,
		DeregisterTimeout: cfg.DeregisterTimeout,
		Observer:          metrics,
		Logger:            logger,
	})

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(signals)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", errUncaughtFault, r)
			}
		}()
		if err := lifecycle.Run(gctx); err != nil && !errors.Is(err, service.ErrShutdown) {
			return err
		}
		return nil
	})

	// Все причины завершения сходятся в один Shutdown
	g.Go(func() error {
		var cause string
		select {
		case sig := <-signals:
			cause = sig.String()
		case <-gctx.Done():
			cause = context.Cause(gctx).Error()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := lifecycle.Shutdown(shutdownCtx, cause); err != nil {
			logger.Warn("shutdown finished with error", "tag", telemetry.TagServiceShutdown, "error", err)
		}
		return errStopped
	})

	if cfg.WorkerPort != "" {
		probes := api.NewRouter(api.Config{
			Health:   lifecycle.HealthHandler(),
			Metrics:  promhttp.Handler(),
			Identity: identity,
			Logger:   logger,
		})

		srv := &http.Server{
			Addr:              ":" + cfg.WorkerPort,
			Handler:           probes,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
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

	err = g.Wait()
	if errors.Is(err, errStopped) {
		err = nil
	}

	logger.Info("gateway-worker stopped")
	return err
}

// routesInit проверяет, что у каждого маршрута есть обработчик.
// Результат (список обработчиков) попадает в Session.CustomData.
func routesInit(router *handler.Router, routes []domain.Route) service.Initializer {
	return service.InitFunc(func(_ context.Context, logger *slog.Logger) (any, error) {
		names := router.Names()
		if err := router.Validate(routes); err != nil {
			return map[string]any{"handlers": names}, err
		}
		logger.Debug("all routes have handlers", "tag", telemetry.TagStartService, "handlers", names)
		return map[string]any{"handlers": names}, nil
	})
}
