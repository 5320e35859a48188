// Пакет config — загрузка и валидация конфигурации File Hub
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации File Hub.
// Используется обоими бинарниками: API-сервером и worker-ом.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration
	// Таймаут graceful shutdown (по умолчанию 10s)
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Пользователь PostgreSQL
	DBUser string
	// Пароль PostgreSQL
	DBPassword string
	// Имя базы данных
	DBName string
	// Режим SSL (disable, require, verify-full)
	DBSSLMode string

	// --- Blob-хранилище ---

	// Корневая директория хранения содержимого файлов
	DataDir string

	// --- Auth-сервис ---

	// Базовый URL auth-сервиса (resolve токенов)
	AuthServiceURL string
	// Таймаут запросов к auth-сервису
	AuthTimeout time.Duration
	// Путь к CA-сертификату auth-сервиса (пусто — стандартный пул)
	AuthCACertPath string

	// --- Очередь заданий ---

	// Интервал опроса очереди consumer-ом
	QueuePollInterval time.Duration
	// Таймаут обработки одного задания
	JobTimeout time.Duration
	// Максимальное количество попыток задания до dead-letter
	JobMaxAttempts int
	// Срок возврата заданий упавших consumer-ов в очередь
	JobReclaimAfter time.Duration
	// Количество параллельных worker-горутин
	WorkerConcurrency int

	// --- Кэш метаданных ---

	// Максимальный размер LRU-кэша (записей)
	CacheSize int
	// TTL записи кэша
	CacheTTL time.Duration

	// --- Dephealth ---

	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Добавлять лейбл isentry=yes ко всем зависимостям
	DephealthIsEntry bool
}

// DatabaseDSN возвращает DSN подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FH_PORT — порт HTTP-сервера (по умолчанию 8050)
	cfg.Port, err = getEnvInt("FH_PORT", 8050)
	if err != nil {
		return nil, fmt.Errorf("FH_PORT: %w", err)
	}

	// FH_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("FH_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("FH_LOG_LEVEL: %w", err)
	}

	// FH_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FH_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FH_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("FH_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FH_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("FH_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FH_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("FH_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FH_HTTP_IDLE_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout, err = getEnvDuration("FH_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FH_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("FH_DB_HOST", "localhost")

	cfg.DBPort, err = getEnvInt("FH_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FH_DB_PORT: %w", err)
	}

	// FH_DB_USER — обязательная переменная
	cfg.DBUser, err = getEnvRequired("FH_DB_USER")
	if err != nil {
		return nil, err
	}

	// FH_DB_PASSWORD — обязательная переменная
	cfg.DBPassword, err = getEnvRequired("FH_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBName = getEnvDefault("FH_DB_NAME", "filehub")

	cfg.DBSSLMode = getEnvDefault("FH_DB_SSLMODE", "disable")
	switch cfg.DBSSLMode {
	case "disable", "require", "verify-ca", "verify-full":
	default:
		return nil, fmt.Errorf("FH_DB_SSLMODE: недопустимый режим %q", cfg.DBSSLMode)
	}

	// --- Blob-хранилище ---

	// FH_DATA_DIR — корневая директория blob-хранилища
	cfg.DataDir = getEnvDefault("FH_DATA_DIR", "/var/lib/filehub/data")

	// --- Auth-сервис ---

	// FH_AUTH_URL — обязательная переменная
	cfg.AuthServiceURL, err = getEnvRequired("FH_AUTH_URL")
	if err != nil {
		return nil, err
	}

	cfg.AuthTimeout, err = getEnvDuration("FH_AUTH_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FH_AUTH_TIMEOUT: %w", err)
	}

	cfg.AuthCACertPath = getEnvDefault("FH_AUTH_CA_CERT_PATH", "")

	// --- Очередь заданий ---

	cfg.QueuePollInterval, err = getEnvDuration("FH_QUEUE_POLL_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("FH_QUEUE_POLL_INTERVAL: %w", err)
	}

	cfg.JobTimeout, err = getEnvDuration("FH_JOB_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FH_JOB_TIMEOUT: %w", err)
	}

	cfg.JobMaxAttempts, err = getEnvInt("FH_JOB_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("FH_JOB_MAX_ATTEMPTS: %w", err)
	}
	if cfg.JobMaxAttempts < 1 {
		return nil, fmt.Errorf("FH_JOB_MAX_ATTEMPTS: значение должно быть >= 1")
	}

	cfg.JobReclaimAfter, err = getEnvDuration("FH_JOB_RECLAIM_AFTER", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FH_JOB_RECLAIM_AFTER: %w", err)
	}
	if cfg.JobReclaimAfter <= cfg.JobTimeout {
		return nil, fmt.Errorf("FH_JOB_RECLAIM_AFTER: значение должно превышать FH_JOB_TIMEOUT")
	}

	cfg.WorkerConcurrency, err = getEnvInt("FH_WORKER_CONCURRENCY", 2)
	if err != nil {
		return nil, fmt.Errorf("FH_WORKER_CONCURRENCY: %w", err)
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("FH_WORKER_CONCURRENCY: значение должно быть >= 1")
	}

	// --- Кэш метаданных ---

	cfg.CacheSize, err = getEnvInt("FH_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("FH_CACHE_SIZE: %w", err)
	}

	cfg.CacheTTL, err = getEnvDuration("FH_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FH_CACHE_TTL: %w", err)
	}

	// --- Dephealth ---

	cfg.DephealthGroup = getEnvDefault("FH_DEPHEALTH_GROUP", "filehub")

	cfg.DephealthCheckInterval, err = getEnvDuration("FH_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FH_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
