// files.go — сервис операций над иерархией файлов: создание,
// чтение метаданных, листинг, publish/unpublish, чтение содержимого.
package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gofilehub/internal/domain/model"
	"github.com/bigkaa/gofilehub/internal/queue"
	"github.com/bigkaa/gofilehub/internal/repository"
	"github.com/bigkaa/gofilehub/internal/storage/blobstore"
)

// PageSize — фиксированный размер страницы листинга.
const PageSize = 20

// Prometheus метрики файловых операций
var (
	// filesCreatedTotal — количество созданных записей по типам.
	filesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fh_files_created_total",
		Help: "Общее количество созданных записей иерархии",
	}, []string{"kind"})

	// contentReadsTotal — количество чтений содержимого по исходам.
	contentReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fh_content_reads_total",
		Help: "Общее количество чтений содержимого",
	}, []string{"result"}) // result: ok | not_found | error
)

// CreateParams — параметры создания записи иерархии.
type CreateParams struct {
	// OwnerID — UUID аутентифицированного владельца
	OwnerID string
	// Name — отображаемое имя
	Name string
	// Kind — тип записи (wire-значение: folder/file/image)
	Kind string
	// IsPublic — публичная видимость
	IsPublic bool
	// Parent — ссылка на родителя
	Parent model.ParentRef
	// Data — содержимое в base64; обязательно для file/image
	Data string
}

// FileService — операции над иерархией файлов.
type FileService struct {
	files     repository.FileRepository
	blobs     *blobstore.BlobStore
	jobs      queue.Queue
	validator *HierarchyValidator
	gate      *VisibilityGate
	cache     *CacheService
	logger    *slog.Logger
}

// NewFileService создаёт сервис файловых операций.
func NewFileService(
	files repository.FileRepository,
	blobs *blobstore.BlobStore,
	jobs queue.Queue,
	validator *HierarchyValidator,
	gate *VisibilityGate,
	cache *CacheService,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		files:     files,
		blobs:     blobs,
		jobs:      jobs,
		validator: validator,
		gate:      gate,
		cache:     cache,
		logger:    logger.With(slog.String("component", "file_service")),
	}
}

// Create создаёт запись иерархии.
//
// Поток:
//  1. Валидация полей (имя, тип, содержимое для file/image)
//  2. Валидация родителя (HierarchyValidator)
//  3. Декодирование base64 и запись содержимого в blobstore (кроме папок)
//  4. Вставка записи (id назначает хранилище)
//  5. Для изображений — постановка thumbnail-задания в очередь
func (s *FileService) Create(ctx context.Context, params CreateParams) (*model.FileRecord, error) {
	// 1. Валидация полей
	if params.Name == "" {
		return nil, ErrMissingName
	}
	if !model.ValidKind(params.Kind) {
		return nil, ErrMissingType
	}
	kind := model.FileKind(params.Kind)
	if kind != model.KindFolder && params.Data == "" {
		return nil, ErrMissingData
	}

	// 2. Валидация родителя
	if err := s.validator.ValidateParent(ctx, params.Parent); err != nil {
		return nil, err
	}

	// 3. Содержимое на диск (кроме папок)
	var storagePath string
	if kind != model.KindFolder {
		data, err := base64.StdEncoding.DecodeString(params.Data)
		if err != nil {
			return nil, ErrInvalidData
		}

		storagePath, err = s.blobs.Write(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("ошибка записи содержимого: %w", err)
		}
	}

	// 4. Вставка записи
	rec, err := s.files.Create(ctx, repository.CreateFileParams{
		OwnerID:     params.OwnerID,
		Name:        params.Name,
		Kind:        kind,
		IsPublic:    params.IsPublic,
		Parent:      params.Parent,
		StoragePath: storagePath,
	})
	if err != nil {
		// Запись не создана — содержимое на диске осиротело, убираем
		if storagePath != "" {
			if rmErr := s.blobs.Remove(storagePath); rmErr != nil {
				s.logger.Error("Ошибка удаления осиротевшего содержимого",
					slog.String("locator", storagePath),
					slog.String("error", rmErr.Error()),
				)
			}
		}
		return nil, fmt.Errorf("ошибка создания записи: %w", err)
	}

	// 5. Thumbnail-задание для изображений
	if kind == model.KindImage {
		err := s.jobs.Enqueue(ctx, queue.JobThumbnail, queue.ThumbnailPayload{
			FileID: rec.ID,
			UserID: rec.OwnerID,
		})
		if err != nil {
			// Запись уже создана и отдаётся клиенту; задание потеряно,
			// thumbnail-ы для неё не появятся без ручного вмешательства
			s.logger.Error("Ошибка постановки thumbnail-задания",
				slog.String("file_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	filesCreatedTotal.WithLabelValues(string(kind)).Inc()
	s.logger.Info("Запись создана",
		slog.String("file_id", rec.ID),
		slog.String("kind", string(kind)),
		slog.String("owner_id", rec.OwnerID),
		slog.String("parent", rec.Parent.String()),
	)

	return rec, nil
}

// Get возвращает запись владельца по id.
// Чужая запись неотличима от отсутствующей — ErrNotFound.
func (s *FileService) Get(ctx context.Context, ownerID, fileID string) (*model.FileRecord, error) {
	rec, err := s.files.GetByOwner(ctx, fileID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List возвращает страницу записей владельца под указанным родителем.
// Политика чтения — fail soft: некорректная страница, несуществующий
// или чужой родитель дают пустую страницу, не ошибку.
func (s *FileService) List(ctx context.Context, ownerID string, parent model.ParentRef, page int) ([]*model.FileRecord, error) {
	// Верхняя граница: page*PageSize не должно переполниться
	// в отрицательный OFFSET
	if page < 0 || page > math.MaxInt/PageSize {
		return []*model.FileRecord{}, nil
	}

	// Не-корневой родитель: существующая папка запрашивающего,
	// иначе пустая страница
	if !parent.IsRoot() {
		folder, err := s.files.GetByOwner(ctx, parent.ID(), ownerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return []*model.FileRecord{}, nil
			}
			return nil, err
		}
		if folder.Kind != model.KindFolder {
			return []*model.FileRecord{}, nil
		}
	}

	records, err := s.files.ListByParent(ctx, ownerID, parent, PageSize, page*PageSize)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*model.FileRecord{}
	}
	return records, nil
}

// SetPublic переключает публичную видимость записи владельца.
func (s *FileService) SetPublic(ctx context.Context, ownerID, fileID string, isPublic bool) (*model.FileRecord, error) {
	rec, err := s.files.SetPublic(ctx, fileID, ownerID, isPublic)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Инвалидация кэша метаданных: видимость изменилась
	s.cache.Delete(fileID)

	s.logger.Info("Видимость записи изменена",
		slog.String("file_id", fileID),
		slog.Bool("is_public", isPublic),
	)
	return rec, nil
}

// ReadContent возвращает содержимое записи (или её варианта) и MIME-тип.
// requesterID — пустая строка для неаутентифицированного запроса.
//
// Отсутствующая запись, невидимая запись, папка, отсутствующее
// содержимое и отсутствующий вариант схлопываются в ErrNotFound:
// у чтения содержимого единственный отрицательный исход.
func (s *FileService) ReadContent(ctx context.Context, requesterID, fileID, sizeTag string) ([]byte, string, error) {
	rec, ok := s.cache.Get(fileID)
	if !ok {
		var err error
		rec, err = s.files.GetByID(ctx, fileID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				contentReadsTotal.WithLabelValues("not_found").Inc()
				return nil, "", ErrNotFound
			}
			contentReadsTotal.WithLabelValues("error").Inc()
			return nil, "", err
		}
		s.cache.Set(fileID, rec)
	}

	if !s.gate.CanRead(rec, requesterID) {
		contentReadsTotal.WithLabelValues("not_found").Inc()
		return nil, "", ErrNotFound
	}

	// У папки нет содержимого — тот же исход, что и отсутствие записи
	if rec.Kind == model.KindFolder {
		contentReadsTotal.WithLabelValues("not_found").Inc()
		return nil, "", ErrNotFound
	}

	if sizeTag != "" && !ValidSizeTag(sizeTag) {
		contentReadsTotal.WithLabelValues("not_found").Inc()
		return nil, "", ErrNotFound
	}

	var (
		data []byte
		err  error
	)
	if sizeTag != "" {
		data, err = s.blobs.ReadVariant(rec.StoragePath, sizeTag)
	} else {
		data, err = s.blobs.Read(rec.StoragePath)
	}
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			contentReadsTotal.WithLabelValues("not_found").Inc()
			return nil, "", ErrNotFound
		}
		contentReadsTotal.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("ошибка чтения содержимого: %w", err)
	}

	contentReadsTotal.WithLabelValues("ok").Inc()
	return data, InferContentType(rec.Name), nil
}

// InferContentType определяет MIME-тип по расширению имени записи.
// Используется только для заголовка ответа, не для валидации.
func InferContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
