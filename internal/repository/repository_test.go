package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/gofilehub/internal/config"
	"github.com/bigkaa/gofilehub/internal/database"
	"github.com/bigkaa/gofilehub/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; контейнер и пул закрываются через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("filehub_test"),
		postgres.WithUsername("filehub"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("FH_DB_HOST", host)
	os.Setenv("FH_DB_PORT", port.Port())
	os.Setenv("FH_DB_NAME", "filehub_test")
	os.Setenv("FH_DB_USER", "filehub")
	os.Setenv("FH_DB_PASSWORD", "test-password")
	os.Setenv("FH_DB_SSL_MODE", "disable")
	os.Setenv("FH_AUTH_URL", "http://localhost:8081")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// --- Тесты FileRepository ---

func TestFileRepository_CreateAndGet(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(pool)

	ownerID := uuid.NewString()

	// Папка в корне: parent_id NULL, storage_path NULL
	folder, err := repo.Create(ctx, CreateFileParams{
		OwnerID: ownerID,
		Name:    "documents",
		Kind:    model.KindFolder,
		Parent:  model.RootParent(),
	})
	if err != nil {
		t.Fatalf("Create(folder) ошибка: %v", err)
	}
	if folder.ID == "" {
		t.Fatal("file_id не назначен")
	}
	if !folder.Parent.IsRoot() {
		t.Errorf("Parent = %v, ожидался корень", folder.Parent)
	}
	if folder.StoragePath != "" {
		t.Errorf("StoragePath = %q, у папки должен быть пуст", folder.StoragePath)
	}
	if folder.CreatedAt.IsZero() {
		t.Error("CreatedAt не заполнен")
	}

	// Файл внутри папки
	file, err := repo.Create(ctx, CreateFileParams{
		OwnerID:     ownerID,
		Name:        "report.txt",
		Kind:        model.KindFile,
		Parent:      model.ParentOf(folder.ID),
		StoragePath: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("Create(file) ошибка: %v", err)
	}
	if file.Parent.ID() != folder.ID {
		t.Errorf("Parent = %v, ожидался %s", file.Parent, folder.ID)
	}

	// GetByID возвращает запись независимо от владельца
	got, err := repo.GetByID(ctx, file.ID)
	if err != nil {
		t.Fatalf("GetByID ошибка: %v", err)
	}
	if got.Name != "report.txt" || got.Kind != model.KindFile {
		t.Errorf("запись = %+v", got)
	}

	// GetByOwner: владелец находит, чужой — ErrNotFound
	if _, err := repo.GetByOwner(ctx, file.ID, ownerID); err != nil {
		t.Errorf("GetByOwner(владелец) ошибка: %v", err)
	}
	if _, err := repo.GetByOwner(ctx, file.ID, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByOwner(чужой) = %v, ожидалась ErrNotFound", err)
	}
}

func TestFileRepository_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(pool)

	// Отсутствующий UUID
	if _, err := repo.GetByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID = %v, ожидалась ErrNotFound", err)
	}

	// Синтаксически некорректный идентификатор неотличим от отсутствующего
	if _, err := repo.GetByID(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(мусор) = %v, ожидалась ErrNotFound", err)
	}
	if _, err := repo.SetPublic(ctx, "not-a-uuid", uuid.NewString(), true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetPublic(мусор) = %v, ожидалась ErrNotFound", err)
	}
}

func TestFileRepository_ListByParent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(pool)

	ownerID := uuid.NewString()
	otherID := uuid.NewString()

	// 25 записей в корне владельца + шум другого пользователя
	names := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		name := string(rune('a'+i%26)) + uuid.NewString()[:8]
		names = append(names, name)
		if _, err := repo.Create(ctx, CreateFileParams{
			OwnerID: ownerID, Name: name, Kind: model.KindFolder, Parent: model.RootParent(),
		}); err != nil {
			t.Fatalf("Create ошибка: %v", err)
		}
	}
	if _, err := repo.Create(ctx, CreateFileParams{
		OwnerID: otherID, Name: "noise", Kind: model.KindFolder, Parent: model.RootParent(),
	}); err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}

	// Первая страница: 20 записей в порядке вставки
	page0, err := repo.ListByParent(ctx, ownerID, model.RootParent(), 20, 0)
	if err != nil {
		t.Fatalf("ListByParent ошибка: %v", err)
	}
	if len(page0) != 20 {
		t.Fatalf("страница 0: %d записей, ожидалось 20", len(page0))
	}
	for i, rec := range page0 {
		if rec.Name != names[i] {
			t.Errorf("позиция %d: имя = %q, ожидалось %q", i, rec.Name, names[i])
		}
	}

	// Вторая страница: остаток без пересечения с первой
	page1, err := repo.ListByParent(ctx, ownerID, model.RootParent(), 20, 20)
	if err != nil {
		t.Fatalf("ListByParent ошибка: %v", err)
	}
	if len(page1) != 5 {
		t.Errorf("страница 1: %d записей, ожидалось 5", len(page1))
	}

	// Запредельная страница пуста
	page5, err := repo.ListByParent(ctx, ownerID, model.RootParent(), 20, 100)
	if err != nil {
		t.Fatalf("ListByParent ошибка: %v", err)
	}
	if len(page5) != 0 {
		t.Errorf("страница 5: %d записей, ожидалось 0", len(page5))
	}
}

func TestFileRepository_SetPublic(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(pool)

	ownerID := uuid.NewString()
	rec, err := repo.Create(ctx, CreateFileParams{
		OwnerID: ownerID, Name: "x.txt", Kind: model.KindFile,
		Parent: model.RootParent(), StoragePath: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}

	updated, err := repo.SetPublic(ctx, rec.ID, ownerID, true)
	if err != nil {
		t.Fatalf("SetPublic ошибка: %v", err)
	}
	if !updated.IsPublic {
		t.Error("IsPublic = false после SetPublic(true)")
	}

	// Чужая запись не обновляется
	if _, err := repo.SetPublic(ctx, rec.ID, uuid.NewString(), false); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetPublic(чужой) = %v, ожидалась ErrNotFound", err)
	}

	// Идемпотентность: повтор того же значения
	again, err := repo.SetPublic(ctx, rec.ID, ownerID, true)
	if err != nil {
		t.Fatalf("повторный SetPublic ошибка: %v", err)
	}
	if !again.IsPublic {
		t.Error("IsPublic = false после повторного SetPublic(true)")
	}
}

// --- Тесты UserRepository ---

func TestUserRepository_GetByID(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	userID := uuid.NewString()
	_, err := pool.Exec(ctx,
		`INSERT INTO users (user_id, email) VALUES ($1, $2)`,
		userID, "bob@dylan.com",
	)
	if err != nil {
		t.Fatalf("вставка пользователя: %v", err)
	}

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetByID ошибка: %v", err)
	}
	if user.Email != "bob@dylan.com" {
		t.Errorf("Email = %q", user.Email)
	}

	if _, err := repo.GetByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(отсутствующий) = %v, ожидалась ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(мусор) = %v, ожидалась ErrNotFound", err)
	}
}
