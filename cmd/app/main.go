package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apiHttp "github.com/eventpass/backend/internal/api/http"
	"github.com/eventpass/backend/internal/cache"
	"github.com/eventpass/backend/internal/config"
	"github.com/eventpass/backend/internal/db"
	"github.com/eventpass/backend/internal/janitor"
	"github.com/eventpass/backend/internal/queue/asynqserver"
	queueclient "github.com/eventpass/backend/internal/queue/client"
	"github.com/eventpass/backend/internal/registry"
	"github.com/eventpass/backend/internal/repository"
	"github.com/eventpass/backend/internal/server"
	"github.com/eventpass/backend/internal/service"
	"github.com/eventpass/backend/internal/session"
	"github.com/eventpass/backend/internal/worker"
	"github.com/eventpass/backend/pkg/auth"
	"github.com/eventpass/backend/pkg/email/smtp"
	"github.com/eventpass/backend/pkg/hash"
	logger "github.com/eventpass/backend/pkg/logger"
	"github.com/eventpass/backend/pkg/otp"

	"github.com/hibiken/asynq"
)

func main() {
	// Init cfg from environment variables
	cfg := config.MustLoad()

	// Dependencies
	appLogger := logger.SetupLogger(cfg.Env)

	appLogger.Infow("starting registration api", "env", cfg.Env)
	appLogger.Debug("debug messages are enabled")

	// Init database
	dbMySQL, err := db.New(cfg.Database)
	if err != nil {
		appLogger.Errorw("mysql connect problem", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbMySQL.Close(); err != nil {
			appLogger.Errorw("error when closing mysql", "error", err)
		}
	}()
	appLogger.Info("mysql connection done")

	// Init redis: code sessions, verified markers and rate counters live there
	redisClient, err := cache.NewRedis(cfg.Cache)
	if err != nil {
		appLogger.Errorw("redis connect problem", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			appLogger.Errorw("error when closing redis", "error", err)
		}
	}()
	appLogger.Info("redis connection done")

	sessions := session.NewStore(session.NewRedisKV(redisClient), cfg.Verification)

	codeHasher := hash.NewSHA256Hasher(cfg.Auth.CodeSalt)

	emailSender, err := smtp.NewSMTPSender(cfg.SMTP.From, cfg.SMTP.Pass, cfg.SMTP.Host, cfg.SMTP.Port)
	if err != nil {
		appLogger.Errorw("smtp sender creation failed", "error", err)
		return
	}

	tokenManager, err := auth.NewManager(cfg.Auth.JWT)
	if err != nil {
		appLogger.Errorw("auth manager creation err", "error", err)
		return
	}

	otpGenerator := otp.NewGOTPGenerator()
	registryClient := registry.NewClient(cfg.Registry)

	// Services, Repos & API Handlers
	repos := repository.NewRepositories(dbMySQL)
	services := service.NewServices(service.Deps{
		Logger:       appLogger,
		Config:       cfg,
		Repos:        repos,
		Sessions:     sessions,
		Registry:     registryClient,
		TokenManager: tokenManager,
		OtpGenerator: otpGenerator,
		CodeHasher:   codeHasher,
	})
	handlers := apiHttp.NewHandlers(services, tokenManager, cfg)

	// Queue: verification-code emails go out through asynq
	queueClient := asynq.NewClient(asynqserver.RedisOptions(cfg.Cache))
	defer func() {
		if err := queueClient.Close(); err != nil {
			appLogger.Errorw("error when closing queue client", "error", err)
		}
	}()
	queueclient.SetClient(queueClient)

	workers := worker.NewWorkers(worker.Deps{
		EmailProvider: emailSender,
		Config:        cfg,
	})

	queueServer, queueMux := asynqserver.New(cfg.Cache, workers)
	go func() {
		if err := queueServer.Run(queueMux); err != nil {
			appLogger.Errorw("error occurred while running queue server", "error", err)
		}
	}()

	// Janitor: scheduled purge of the verification audit log
	var logJanitor *janitor.Janitor
	if cfg.Janitor.Enabled {
		logJanitor = janitor.New(appLogger, cfg.Janitor, repos.VerificationLog)
		if err := logJanitor.Start(); err != nil {
			appLogger.Errorw("janitor start failed", "error", err)
			return
		}
	}

	// HTTP Server
	srv := server.NewServer(cfg, handlers.Init(cfg))
	go func() {
		if err := srv.Run(); !errors.Is(err, http.ErrServerClosed) {
			appLogger.Errorw("error occurred while running http server", "error", err)
		}
	}()
	appLogger.Info("server started")

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	<-quit

	const timeout = 5 * time.Second

	ctx, shutdown := context.WithTimeout(context.Background(), timeout)
	defer shutdown()

	if err := srv.Stop(ctx); err != nil {
		appLogger.Errorw("failed to stop server", "error", err)
	}

	queueServer.Shutdown()

	if logJanitor != nil {
		logJanitor.Stop()
	}

	appLogger.Info("app stopped")
}
