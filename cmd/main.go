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

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sayat07/hacklive-system/config"
	"github.com/Sayat07/hacklive-system/db"
	"github.com/Sayat07/hacklive-system/handlers"
	"github.com/Sayat07/hacklive-system/metrics"
	"github.com/Sayat07/hacklive-system/realtime"
	"github.com/Sayat07/hacklive-system/repositories"
	api "github.com/Sayat07/hacklive-system/routes"
	"github.com/Sayat07/hacklive-system/services"
	"github.com/Sayat07/hacklive-system/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Инициализация загрузчика снапшотов (Cloudflare R2). Опционально:
	// без конфигурации результаты просто не архивируются.
	var uploader storage.FileUploader
	if cfg.R2Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("R2 not configured, results archiving disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := realtime.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Метрики
	registry := prometheus.NewRegistry()
	engineMetrics := metrics.New(registry)

	// Инициализация репозиториев
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	broadcastRepo := repositories.NewPostgresBroadcastStateRepository(dbConn)
	voteRepo := repositories.NewPostgresVoteRepository(dbConn)
	weightsRepo := repositories.NewPostgresVotingWeightsRepository(dbConn)
	aggregateRepo := repositories.NewPostgresTeamScoreAggregateRepository(dbConn)
	controlLogRepo := repositories.NewPostgresControlLogRepository(dbConn)
	logger.Info("Repositories initialized")

	// Анонсы переходов: SMTP, если настроен, иначе лог.
	var announcer services.Announcer = &services.LogAnnouncer{Logger: logger}
	if cfg.SMTPHost != "" {
		announcer = services.NewSMTPAnnouncer(services.SMTPAnnouncerConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			User:       cfg.SMTPUser,
			Pass:       cfg.SMTPPass,
			From:       cfg.SMTPFrom,
			Recipients: cfg.SMTPRecipients,
		})
		logger.Info("SMTP announcer configured", slog.String("host", cfg.SMTPHost))
	}

	// Инициализация сервисов
	resultsService := services.NewResultsService(
		aggregateRepo,
		participantRepo,
		broadcastRepo,
		eventRepo,
		uploader,
		logger,
	)

	broadcastService := services.NewBroadcastService(
		dbConn, // Для транзакций с блокировкой строки состояния
		broadcastRepo,
		participantRepo,
		controlLogRepo,
		eventRepo,
		wsHub,
		announcer,
		resultsService,
		engineMetrics,
		services.BroadcastConfig{
			DefaultPitchDuration:  cfg.DefaultPitchDuration,
			DefaultVotingDuration: cfg.DefaultVotingDuration,
		},
		logger,
	)

	voteService := services.NewVoteService(
		voteRepo,
		weightsRepo,
		participantRepo,
		broadcastRepo,
		eventRepo,
		aggregateRepo,
		wsHub,
		engineMetrics,
		logger,
	)
	logger.Info("Services initialized")

	// Фоновое закрытие просроченных окон голосования. Авторитет остаётся
	// за серверными проверками на каждом голосе, reaper лишь подтягивает
	// строку состояния и уведомляет подписчиков.
	if cfg.ReaperInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.ReaperInterval)
			defer ticker.Stop()
			logger.Info("voting window reaper started", slog.Duration("interval", cfg.ReaperInterval))

			for range ticker.C {
				closed, err := broadcastService.CloseExpired(context.Background())
				if err != nil {
					logger.Error("reaper: closing expired voting windows failed", slog.Any("error", err))
					continue
				}
				if closed > 0 {
					logger.Info("reaper: closed expired voting windows", slog.Int("count", closed))
				}
			}
		}()
	}

	// Инициализация обработчиков HTTP
	broadcastHandler := handlers.NewBroadcastHandler(broadcastService)
	voteHandler := handlers.NewVoteHandler(voteService)
	resultsHandler := handlers.NewResultsHandler(resultsService)
	weightsHandler := handlers.NewWeightsHandler(voteService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, broadcastService)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		registry,
		broadcastHandler,
		voteHandler,
		resultsHandler,
		weightsHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		} else {
			logger.Info("server stopped gracefully")
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
