// Точка входа File Hub Worker — фоновый обработчик заданий.
// Забирает задания из очереди в PostgreSQL и выполняет их:
// генерация thumbnail-ов для изображений и приветствие новых
// пользователей. Несколько реплик worker-а могут работать
// параллельно — очередь выдаёт каждое задание ровно одному.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/gofilehub/internal/config"
	"github.com/bigkaa/gofilehub/internal/database"
	"github.com/bigkaa/gofilehub/internal/queue"
	"github.com/bigkaa/gofilehub/internal/repository"
	"github.com/bigkaa/gofilehub/internal/service"
	"github.com/bigkaa/gofilehub/internal/storage/blobstore"
	"github.com/bigkaa/gofilehub/internal/worker"
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
	logger.Info("File Hub Worker запускается",
		slog.String("version", config.Version),
		slog.Int("concurrency", cfg.WorkerConcurrency),
	)

	// 3. Подключение к PostgreSQL (pgxpool).
	// Миграции применяет API-модуль; worker подключается к готовой схеме.
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 4. Хранилище блобов — общий с API-модулем каталог
	blobs, err := blobstore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища блобов",
			slog.String("data_dir", cfg.DataDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// 5. Очередь заданий
	jobs := queue.New(pool, queue.Options{
		PollInterval: cfg.QueuePollInterval,
		ReclaimAfter: cfg.JobReclaimAfter,
		MaxAttempts:  cfg.JobMaxAttempts,
	}, logger)

	// 6. Repositories и обработчики заданий
	fileRepo := repository.NewFileRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	thumbnailSvc := service.NewThumbnailService(fileRepo, blobs, logger)
	welcomeSvc := service.NewWelcomeService(userRepo, logger)

	handlers := map[string]worker.Handler{
		queue.JobThumbnail: thumbnailSvc,
		queue.JobWelcome:   welcomeSvc,
	}

	// 7. topologymetrics — worker зависит от PostgreSQL
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"filehub-worker",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseDSN(),
		"", // auth-сервис worker-у не нужен
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	}

	// 8. Запуск worker-а
	w := worker.New(jobs, handlers, cfg.WorkerConcurrency, cfg.JobTimeout, logger)
	w.Start(ctx)
	logger.Info("Worker запущен")

	// 9. Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))

	// 10. Graceful shutdown: сначала очередь (разблокирует Receive),
	// затем ожидание завершения горутин обработки.
	jobs.Close()
	w.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("File Hub Worker остановлен")
}
