package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/rice-apps/carpool-backend/internal/adapters/httpapi"
	"github.com/rice-apps/carpool-backend/internal/adapters/mail"
	memreminderjob "github.com/rice-apps/carpool-backend/internal/adapters/memory/reminderjob"
	memriderepo "github.com/rice-apps/carpool-backend/internal/adapters/memory/riderepo"
	memuserrepo "github.com/rice-apps/carpool-backend/internal/adapters/memory/userrepo"
	postgres "github.com/rice-apps/carpool-backend/internal/adapters/postgres"
	pgreminderjob "github.com/rice-apps/carpool-backend/internal/adapters/postgres/reminderjob"
	pgriderepo "github.com/rice-apps/carpool-backend/internal/adapters/postgres/riderepo"
	pguserrepo "github.com/rice-apps/carpool-backend/internal/adapters/postgres/userrepo"
	"github.com/rice-apps/carpool-backend/internal/app/auth"
	"github.com/rice-apps/carpool-backend/internal/app/reminders"
	"github.com/rice-apps/carpool-backend/internal/app/rides"
	"github.com/rice-apps/carpool-backend/internal/platform/auth/cas"
	"github.com/rice-apps/carpool-backend/internal/platform/auth/token"
	platformclock "github.com/rice-apps/carpool-backend/internal/platform/clock"
	"github.com/rice-apps/carpool-backend/internal/platform/config"
	mailerport "github.com/rice-apps/carpool-backend/internal/ports/out/mailer"
	reminderjobport "github.com/rice-apps/carpool-backend/internal/ports/out/reminderjob"
	riderepoport "github.com/rice-apps/carpool-backend/internal/ports/out/riderepo"
	userrepoport "github.com/rice-apps/carpool-backend/internal/ports/out/userrepo"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	clk := platformclock.NewSystemClock()

	// Auth configuration:
	// - Production: HS256 session tokens minted after a CAS ticket exchange
	// - Local dev: set AUTH_MODE=dev to bypass tokens and use X-Debug-User
	signer := token.NewSigner(cfg.JWTSecret, cfg.TokenTTL)
	var authMW func(http.Handler) http.Handler
	switch cfg.AuthMode {
	case "dev":
		authMW = httpapi.NewDevAuthMiddleware(cfg.DevUsername)
	default:
		authMW = httpapi.NewAuthMiddleware(signer)
	}

	var (
		userRepo userrepoport.Repository
		rideRepo riderepoport.Repository
		jobStore reminderjobport.Store
		cleanup  func()
	)
	switch cfg.StorageBackend {
	case "postgres":
		pool, err := postgres.NewPool(context.Background(), cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		cleanup = pool.Close

		userRepo = pguserrepo.NewRepo(pool)
		rideRepo = pgriderepo.NewRepo(pool)
		jobStore = pgreminderjob.NewStore(pool)
	default:
		userRepo = memuserrepo.NewRepo()
		rideRepo = memriderepo.NewRepo()
		jobStore = memreminderjob.NewStore()
	}
	if cleanup != nil {
		defer cleanup()
	}

	var gateway mailerport.Gateway
	switch cfg.MailMode {
	case "gmail":
		svc, err := gmail.NewService(context.Background())
		if err != nil {
			logger.Error("gmail service init failed", "error", err)
			os.Exit(1)
		}
		gateway = mail.NewGmailGateway(svc, logger, cfg.MailFrom)
	default:
		gateway = mail.NewMockGateway(logger)
	}

	composer := rides.NewComposer(cfg.BaseURL)
	rideSvc := rides.NewService(rideRepo, userRepo, jobStore, gateway, clk, composer, logger)

	casClient := cas.NewClient(cfg.CASValidateURL, cfg.ServiceURL, nil)
	authSvc := auth.NewService(userRepo, casClient, signer, clk, logger)

	api := httpapi.NewServer(rideSvc, authSvc, logger)
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{AuthMiddleware: authMW})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := reminders.NewWorker(jobStore, rideRepo, gateway, clk, logger, cfg.ReminderPollInterval)
	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("reminder worker stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("api listening", "port", cfg.Port, "storage", cfg.StorageBackend, "mail", cfg.MailMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
