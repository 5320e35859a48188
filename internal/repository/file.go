package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gofilehub/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `file_id, owner_id, name, kind, is_public, parent_id, storage_path, created_at`

// CreateFileParams — параметры создания записи иерархии.
// file_id назначает база данных (gen_random_uuid), клиентские
// идентификаторы не принимаются.
type CreateFileParams struct {
	// OwnerID — UUID владельца записи
	OwnerID string
	// Name — отображаемое имя
	Name string
	// Kind — тип записи (folder/file/image)
	Kind model.FileKind
	// IsPublic — публичная видимость
	IsPublic bool
	// Parent — ссылка на родителя (корень или UUID папки)
	Parent model.ParentRef
	// StoragePath — локатор содержимого; пустой для папок
	StoragePath string
}

// FileRepository — интерфейс доступа к записям иерархии файлов.
type FileRepository interface {
	// Create вставляет запись и возвращает её с назначенным file_id.
	Create(ctx context.Context, params CreateFileParams) (*model.FileRecord, error)
	// GetByID возвращает запись по UUID без учёта владельца.
	GetByID(ctx context.Context, fileID string) (*model.FileRecord, error)
	// GetByOwner возвращает запись по UUID, принадлежащую ownerID.
	// Чужая запись неотличима от отсутствующей — ErrNotFound.
	GetByOwner(ctx context.Context, fileID, ownerID string) (*model.FileRecord, error)
	// ListByParent возвращает страницу записей владельца под указанным
	// родителем в порядке вставки.
	ListByParent(ctx context.Context, ownerID string, parent model.ParentRef, limit, offset int) ([]*model.FileRecord, error)
	// SetPublic обновляет флаг is_public записи владельца и возвращает
	// обновлённую запись.
	SetPublic(ctx context.Context, fileID, ownerID string, isPublic bool) (*model.FileRecord, error)
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий записей иерархии.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

// Create вставляет запись и возвращает её с назначенным file_id.
func (r *fileRepo) Create(ctx context.Context, params CreateFileParams) (*model.FileRecord, error) {
	query := fmt.Sprintf(`
		INSERT INTO files (owner_id, name, kind, is_public, parent_id, storage_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, fileColumns)

	rec, err := scanFile(r.db.QueryRow(ctx, query,
		params.OwnerID,
		params.Name,
		string(params.Kind),
		params.IsPublic,
		parentToDB(params.Parent),
		storagePathToDB(params.StoragePath),
	))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания записи: %w", err)
	}
	return rec, nil
}

// GetByID возвращает запись по UUID или ErrNotFound.
func (r *fileRepo) GetByID(ctx context.Context, fileID string) (*model.FileRecord, error) {
	if !validUUID(fileID) {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM files WHERE file_id = $1`, fileColumns)

	rec, err := scanFile(r.db.QueryRow(ctx, query, fileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return rec, nil
}

// GetByOwner возвращает запись по UUID, принадлежащую ownerID.
func (r *fileRepo) GetByOwner(ctx context.Context, fileID, ownerID string) (*model.FileRecord, error) {
	if !validUUID(fileID) {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM files WHERE file_id = $1 AND owner_id = $2`, fileColumns)

	rec, err := scanFile(r.db.QueryRow(ctx, query, fileID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return rec, nil
}

// ListByParent возвращает страницу записей владельца под указанным родителем.
// Порядок — порядок вставки (столбец seq), что обеспечивает стабильную
// пагинацию: страницы p и p+1 не пересекаются.
func (r *fileRepo) ListByParent(ctx context.Context, ownerID string, parent model.ParentRef, limit, offset int) ([]*model.FileRecord, error) {
	var (
		query string
		args  []any
	)
	if parent.IsRoot() {
		query = fmt.Sprintf(
			`SELECT %s FROM files WHERE owner_id = $1 AND parent_id IS NULL ORDER BY seq LIMIT $2 OFFSET $3`,
			fileColumns,
		)
		args = []any{ownerID, limit, offset}
	} else {
		query = fmt.Sprintf(
			`SELECT %s FROM files WHERE owner_id = $1 AND parent_id = $2 ORDER BY seq LIMIT $3 OFFSET $4`,
			fileColumns,
		)
		args = []any{ownerID, parent.ID(), limit, offset}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка листинга записей: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// SetPublic обновляет флаг is_public записи владельца.
// Чужая или отсутствующая запись — ErrNotFound.
func (r *fileRepo) SetPublic(ctx context.Context, fileID, ownerID string, isPublic bool) (*model.FileRecord, error) {
	if !validUUID(fileID) {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`
		UPDATE files SET is_public = $3
		WHERE file_id = $1 AND owner_id = $2
		RETURNING %s`, fileColumns)

	rec, err := scanFile(r.db.QueryRow(ctx, query, fileID, ownerID, isPublic))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления видимости: %w", err)
	}
	return rec, nil
}

// scanFile сканирует одну строку таблицы files в доменную модель.
// NULL parent_id преобразуется в корневой sentinel,
// NULL storage_path — в пустую строку.
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	var (
		rec         model.FileRecord
		kind        string
		parentID    *string
		storagePath *string
	)

	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Name, &kind,
		&rec.IsPublic, &parentID, &storagePath, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Kind = model.FileKind(kind)
	if parentID != nil {
		rec.Parent = model.ParentOf(*parentID)
	} else {
		rec.Parent = model.RootParent()
	}
	if storagePath != nil {
		rec.StoragePath = *storagePath
	}
	return &rec, nil
}

// parentToDB преобразует ParentRef в значение столбца parent_id.
func parentToDB(p model.ParentRef) *string {
	if p.IsRoot() {
		return nil
	}
	id := p.ID()
	return &id
}

// storagePathToDB преобразует локатор в значение столбца storage_path.
func storagePathToDB(path string) *string {
	if path == "" {
		return nil
	}
	return &path
}

// validUUID проверяет синтаксис UUID. Некорректный идентификатор
// неотличим от отсутствующей записи.
func validUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
