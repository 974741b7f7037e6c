package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-salon/internal/auth"
	"github.com/ovaphlow/pitchfork/service-salon/internal/booking"
	bookingrepo "github.com/ovaphlow/pitchfork/service-salon/internal/booking/repo"
	"github.com/ovaphlow/pitchfork/service-salon/internal/config"
	"github.com/ovaphlow/pitchfork/service-salon/internal/maintenance"
	"github.com/ovaphlow/pitchfork/service-salon/internal/notify"
	"github.com/ovaphlow/pitchfork/service-salon/internal/router"
	"github.com/ovaphlow/pitchfork/service-salon/internal/worker"
	workerrepo "github.com/ovaphlow/pitchfork/service-salon/internal/worker/repo"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/database"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/utilities"
)

func main() {
	// load .env file if present so the environment picks values from it
	// this is best-effort: if no .env exists, continue with the real env
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.Init(utilities.Config{Level: cfg.LogLevel, Dev: cfg.LogDev, File: cfg.LogFile, MaxAge: cfg.LogMaxAge})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting service-salon", "addr", cfg.HTTPAddr, "db_driver", cfg.DatabaseDriver, "notify", cfg.NotifyTransport)

	db, err := database.Connect(database.Config{
		Driver:   cfg.DatabaseDriver,
		DSN:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConns,
		Timeout:  cfg.DatabaseTimeout,
		TimeZone: cfg.DatabaseTimeZone,
	})
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), cfg.DatabaseTimeout)
	if err := database.EnsureSchema(schemaCtx, db); err != nil {
		cancelSchema()
		sugar.Fatalf("ensure schema: %v", err)
	}
	cancelSchema()

	mailer, closeMailer, err := newMailer(cfg, sugar)
	if err != nil {
		sugar.Fatalf("mailer: %v", err)
	}
	dispatcher := notify.NewDispatcher(mailer, sugar.Named("notify"), notify.DispatcherConfig{
		Workers:       cfg.NotifyWorkers,
		QueueSize:     cfg.NotifyQueue,
		SnowflakeNode: cfg.SnowflakeNode,
	})

	clock := clockwork.NewRealClock()
	tokens := auth.NewService([]byte(cfg.JWTSecret), clock)
	bookingRepo := bookingrepo.NewBookingRepo(db)
	bookings := booking.NewService(bookingRepo, dispatcher, clock, sugar.Named("booking"), cfg.PublicBaseURL())
	workers := worker.NewService(workerrepo.NewWorkerRepo(db), nil, tokens, dispatcher, clock, sugar.Named("worker"), worker.Config{
		BaseURL:    cfg.PublicBaseURL(),
		AdminEmail: cfg.AdminRecipient(),
	})
	sweeper := maintenance.NewSweeper(bookingRepo, clock, sugar.Named("maintenance"))

	var runner *maintenance.Runner
	if cfg.SweepSchedule != "" {
		runner, err = maintenance.NewRunner(sweeper, cfg.SweepSchedule, time.Minute, sugar.Named("maintenance"))
		if err != nil {
			sugar.Fatalf("sweep schedule: %v", err)
		}
		runner.Start()
	}

	if cfg.CronSecret == "" {
		sugar.Warn("CRON_SECRET is not set; the cleanup trigger accepts unauthenticated calls")
	}

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// mount http server
	handler := router.RegisterRoutes(router.Deps{
		Auth:        tokens,
		Bookings:    booking.NewHandler(bookings, sugar),
		Workers:     worker.NewHandler(workers, sugar),
		Maintenance: maintenance.NewHandler(sweeper, cfg.CronSecret, sugar),
		Logger:      sugar,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if runner != nil {
		runner.Stop(doneCtx)
	}
	// flush queued notifications before the transport goes away
	dispatcher.Close()
	if err := closeMailer(); err != nil {
		sugar.Warnf("mailer close failed: %v", err)
	}

	sugar.Info("goodbye")
}

func newMailer(cfg config.Config, logger *zap.SugaredLogger) (notify.Mailer, func() error, error) {
	noop := func() error { return nil }
	switch cfg.NotifyTransport {
	case "smtp":
		return notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.FromEmail,
		}), noop, nil
	case "amqp":
		m, err := notify.NewAMQPMailer(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	default:
		return notify.NewLogMailer(logger.Named("mail")), noop, nil
	}
}
