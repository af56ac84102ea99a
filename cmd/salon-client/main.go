// Package main запускает клиент записи в салон с локальным HTTP API состояния.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/salon-client/internal/api"
	"github.com/mmeshcher/salon-client/internal/cache"
	"github.com/mmeshcher/salon-client/internal/config"
	"github.com/mmeshcher/salon-client/internal/handler"
	"github.com/mmeshcher/salon-client/internal/loader"
	"github.com/mmeshcher/salon-client/internal/metrics"
	"github.com/mmeshcher/salon-client/internal/middleware"
	"github.com/mmeshcher/salon-client/internal/notify"
	"github.com/mmeshcher/salon-client/internal/ratelimit"
	"github.com/mmeshcher/salon-client/internal/service"
	"github.com/mmeshcher/salon-client/internal/session"
	"github.com/mmeshcher/salon-client/internal/storage"
	"github.com/mmeshcher/salon-client/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	if !cfg.Production() {
		if devLogger, err := zap.NewDevelopment(); err == nil {
			logger = devLogger
			sugar = logger.Sugar()
		}
	}

	var tokens api.TokenStore
	if cfg.DatabaseURI != "" {
		pg, err := storage.NewPostgresTokenStore(cfg.DatabaseURI, storage.DefaultProfile)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		defer pg.Close()
		tokens = pg
	} else {
		tokens = storage.NewFileTokenStore(cfg.TokenFile)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client := api.NewClient(cfg.APIBaseURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(logger.Named("api")),
		api.WithMetrics(metrics.New(reg)),
		api.WithTokenStore(tokens),
	)

	st := store.New()
	defer st.Close()

	dataCache := cache.New(cfg.CacheTTL, nil)
	limiter := ratelimit.New(cfg.RateLimitWindow, cfg.RateLimitMax)

	ld := loader.New(client, st, dataCache, limiter,
		loader.WithDebounce(cfg.LoadDebounce),
		loader.WithInterCallDelay(cfg.InterCallDelay),
		loader.WithTooManyRequestsBackoff(cfg.TooManyRequestsBackoff),
		loader.WithLogger(logger.Named("loader")),
	)
	defer ld.Close()

	boot := session.New(client, st, ld, cfg.BootstrapDelay, logger.Named("session"))
	defer boot.Close()

	hub := notify.NewHub()

	svc := service.NewService(client, st, ld, limiter, dataCache,
		service.WithBootstrapper(boot),
		service.WithNotifier(hub),
		service.WithLogger(logger.Named("service")),
	)
	defer svc.Close()

	client.OnSessionExpired(svc.SessionExpired)

	h := handler.NewHandler(svc, logger, middleware.NewAccessGuard(cfg.AccessKey))
	r := h.SetupRouter(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Восстановление сессии и фоновое обновление данных
	g.Go(func() error {
		state := svc.Bootstrap(ctx)
		sugar.Infow("session restored", "state", state.String())
		svc.StartAutoRefresh(ctx, cfg.AutoRefreshInterval)
		return nil
	})

	// Уведомления пользователю пишутся в лог
	g.Go(func() error {
		toasts, unsubscribe := hub.Subscribe()
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return nil
			case t := <-toasts:
				sugar.Infow("notification", "kind", t.Kind, "message", t.Message)
			}
		}
	})

	g.Go(func() error {
		sugar.Infow("starting salon client", "addr", cfg.RunAddress, "backend", cfg.APIBaseURL, "mode", cfg.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
