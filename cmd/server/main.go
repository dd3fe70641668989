package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/marketplace-api/internal/app"
	"github.com/ignatzorin/marketplace-api/internal/catalog"
	"github.com/ignatzorin/marketplace-api/internal/config"
	httpHandlers "github.com/ignatzorin/marketplace-api/internal/http/handlers"
	httpRouter "github.com/ignatzorin/marketplace-api/internal/http/router"
	"github.com/ignatzorin/marketplace-api/internal/logger"
	"github.com/ignatzorin/marketplace-api/internal/repository"
	"github.com/ignatzorin/marketplace-api/internal/repository/common"
	"github.com/ignatzorin/marketplace-api/internal/service"
	"github.com/ignatzorin/marketplace-api/internal/storage"
	"github.com/ignatzorin/marketplace-api/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}
	logger.Init(app.LogLevel(cfg.Env), cfg.Env)

	// Подключение к базе и миграции.
	dbConn, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("main: база данных недоступна: %v", err)
	}
	defer safeClose(dbConn)

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	documents, err := storage.NewDocumentStorage(cfg.UploadsPath, cfg.MaxUploadSizeMB)
	if err != nil {
		logger.Log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Репозитории.
	txManager := common.NewTxManager(dbConn)
	userRepo := repository.NewUserRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn)
	proposalRepo := repository.NewProposalRepository(dbConn)
	contractRepo := repository.NewContractRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn, proposalRepo)
	connectRepo := repository.NewConnectRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	certificationRepo := repository.NewCertificationRepository(dbConn)
	idempotencyRepo := repository.NewIdempotencyRepository(dbConn)

	// Сервисы.
	notificationService := service.NewNotificationService(notificationRepo, hub)
	authService := service.NewAuthService(userRepo, tokenManager)
	jobService := service.NewJobService(txManager, jobRepo, proposalRepo, contractRepo, userRepo, notificationService, cfg.ProposalConnectCost)
	contractService := service.NewContractService(txManager, contractRepo, jobRepo, notificationService)
	paymentService := service.NewPaymentService(txManager, paymentRepo, proposalRepo, idempotencyRepo)
	connectService := service.NewConnectService(txManager, catalog.Default(), connectRepo, userRepo, idempotencyRepo)
	certificationService := service.NewCertificationService(certificationRepo, documents)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Health:         httpHandlers.NewHealthHandler(dbConn),
		Auth:           httpHandlers.NewAuthHandler(authService),
		Jobs:           httpHandlers.NewJobHandler(jobService),
		Contracts:      httpHandlers.NewContractHandler(contractService),
		Payments:       httpHandlers.NewPaymentHandler(paymentService),
		Connects:       httpHandlers.NewConnectHandler(connectService),
		Notifications:  httpHandlers.NewNotificationHandler(notificationService),
		Certifications: httpHandlers.NewCertificationHandler(certificationService),
		WS:             httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	}()

	logger.Log.WithFields(logrus.Fields{
		"port":      cfg.HTTPPort,
		"route_set": cfg.RouteSet,
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}

	// Уведомления, ушедшие в доставку до остановки.
	notificationService.Wait()
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.WithError(err).Error("main: ошибка закрытия базы")
	}
}
