// Package main запускает бэкенд салона в памяти для локальной разработки клиента.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/salon-client/internal/fakebackend"
	"github.com/mmeshcher/salon-client/internal/model"
)

func main() {
	addr := flag.String("a", "localhost:3001", "listen address")
	latency := flag.Duration("latency", 0, "artificial delay for every request")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	sugar := logger.Sugar()

	backend := fakebackend.New()
	backend.SetLatency(*latency)

	demo := backend.AddUser("Demo Client", "demo@beautybook.app", "demo123")
	backend.AddAppointment(demo.ID, model.Appointment{
		Date:      time.Now().AddDate(0, 0, 3).Format(model.DateLayout),
		Time:      "11:00",
		ServiceID: "1",
		Status:    model.AppointmentStatusScheduled,
	})

	server := &http.Server{
		Addr:    *addr,
		Handler: backend.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting fake salon backend", "addr", *addr, "demoUser", demo.Email)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("fake backend terminated with error", "error", err)
	}
}
