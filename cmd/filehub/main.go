// Точка входа File Hub API — HTTP-сервер файлового хранилища.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует хранилище блобов, очередь заданий и auth-клиент,
// создаёт сервисный слой и API handlers, запускает topologymetrics
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/gofilehub/internal/api/handlers"
	"github.com/bigkaa/gofilehub/internal/authclient"
	"github.com/bigkaa/gofilehub/internal/config"
	"github.com/bigkaa/gofilehub/internal/database"
	"github.com/bigkaa/gofilehub/internal/queue"
	"github.com/bigkaa/gofilehub/internal/repository"
	"github.com/bigkaa/gofilehub/internal/server"
	"github.com/bigkaa/gofilehub/internal/service"
	"github.com/bigkaa/gofilehub/internal/storage/blobstore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("File Hub запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("FH_DEPHEALTH_GROUP") == "" {
		logger.Warn("FH_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилище блобов на локальном диске
	blobs, err := blobstore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища блобов",
			slog.String("data_dir", cfg.DataDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Хранилище блобов готово", slog.String("data_dir", cfg.DataDir))

	// 6. Очередь заданий поверх PostgreSQL
	jobs := queue.New(pool, queue.Options{
		PollInterval: cfg.QueuePollInterval,
		ReclaimAfter: cfg.JobReclaimAfter,
		MaxAttempts:  cfg.JobMaxAttempts,
	}, logger)
	defer jobs.Close()

	// 7. Auth-клиент (разрешение X-Token → userId)
	authClient, err := authclient.New(cfg.AuthServiceURL, cfg.AuthCACertPath, cfg.AuthTimeout, logger)
	if err != nil {
		logger.Error("Ошибка создания auth-клиента", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 8. Repositories
	fileRepo := repository.NewFileRepository(pool)

	// 9. Services
	cacheSvc := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	validator := service.NewHierarchyValidator(fileRepo)
	gate := service.NewVisibilityGate()
	fileSvc := service.NewFileService(fileRepo, blobs, jobs, validator, gate, cacheSvc, logger)

	// 10. Readiness checker и API handler
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker)
	apiHandler := handlers.NewAPIHandler(fileSvc, healthHandler, logger)

	// 11. topologymetrics — мониторинг зависимостей (PostgreSQL + auth-сервис)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"filehub",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseDSN(),
		cfg.AuthServiceURL,
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, authClient)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. Graceful shutdown фоновых компонентов
	logger.Info("Останавливаем фоновые компоненты...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("File Hub остановлен")
}
