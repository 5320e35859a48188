// thumbnail.go — pipeline генерации thumbnail-вариантов изображений.
//
// Состояния задания: Received -> Validated -> SourceLoaded ->
// VariantsWritten -> Acked; любая ошибка валидации или чтения — Failed.
// Pipeline никогда не мутирует FileRecord — только пишет sidecar-блобы.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/gofilehub/internal/domain/model"
	"github.com/bigkaa/gofilehub/internal/queue"
	"github.com/bigkaa/gofilehub/internal/repository"
	"github.com/bigkaa/gofilehub/internal/storage/blobstore"
)

// Ширины thumbnail-вариантов в пикселях, в порядке приоритета.
var variantWidths = []int{500, 250, 100}

// ValidSizeTag проверяет, что sizeTag — одна из поддерживаемых ширин.
func ValidSizeTag(tag string) bool {
	for _, w := range variantWidths {
		if tag == fmt.Sprintf("%d", w) {
			return true
		}
	}
	return false
}

// Prometheus метрики thumbnail pipeline
var (
	// thumbnailJobsTotal — количество обработанных заданий по исходам.
	thumbnailJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fh_thumbnail_jobs_total",
		Help: "Общее количество обработанных thumbnail-заданий",
	}, []string{"result"}) // result: success | failed

	// thumbnailDurationSeconds — длительность обработки задания.
	thumbnailDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fh_thumbnail_duration_seconds",
		Help:    "Длительность генерации thumbnail-вариантов в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// ThumbnailService — consumer thumbnail-заданий.
type ThumbnailService struct {
	files  repository.FileRepository
	blobs  *blobstore.BlobStore
	logger *slog.Logger
}

// NewThumbnailService создаёт сервис генерации thumbnail-ов.
func NewThumbnailService(
	files repository.FileRepository,
	blobs *blobstore.BlobStore,
	logger *slog.Logger,
) *ThumbnailService {
	return &ThumbnailService{
		files:  files,
		blobs:  blobs,
		logger: logger.With(slog.String("component", "thumbnail")),
	}
}

// Process обрабатывает одно thumbnail-задание.
//
// Терминальные ошибки (повтор бессмыслен): неполный payload,
// отсутствующая запись, нечитаемое или некорректное исходное
// изображение. Ошибки записи вариантов — повторяемые.
//
// Повторная обработка того же задания идемпотентна: resize
// детерминирован, варианты перезаписываются теми же байтами.
func (s *ThumbnailService) Process(ctx context.Context, job *queue.Job) error {
	start := time.Now()

	err := s.process(ctx, job)

	thumbnailDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		thumbnailJobsTotal.WithLabelValues("failed").Inc()
		return err
	}
	thumbnailJobsTotal.WithLabelValues("success").Inc()
	return nil
}

func (s *ThumbnailService) process(ctx context.Context, job *queue.Job) error {
	// Validated: payload обязан содержать fileId и ownerId
	var payload queue.ThumbnailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return Terminal(fmt.Errorf("некорректный payload: %w", err))
	}
	if payload.FileID == "" {
		return Terminal(errors.New("в payload отсутствует fileId"))
	}
	if payload.UserID == "" {
		return Terminal(errors.New("в payload отсутствует userId"))
	}

	// SourceLoaded: перечитываем запись из хранилища
	rec, err := s.files.GetByID(ctx, payload.FileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Terminal(fmt.Errorf("файл %s не найден", payload.FileID))
		}
		return fmt.Errorf("ошибка чтения записи %s: %w", payload.FileID, err)
	}
	if rec.Kind != model.KindImage {
		return Terminal(fmt.Errorf("запись %s не является изображением", rec.ID))
	}

	srcBytes, err := s.blobs.Read(rec.StoragePath)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return Terminal(fmt.Errorf("содержимое файла %s отсутствует на диске", rec.ID))
		}
		return fmt.Errorf("ошибка чтения содержимого %s: %w", rec.ID, err)
	}

	src, format, err := image.Decode(bytes.NewReader(srcBytes))
	if err != nil {
		return Terminal(fmt.Errorf("содержимое файла %s не декодируется как изображение: %w", rec.ID, err))
	}

	// VariantsWritten: три варианта генерируются независимо и
	// параллельно; любая неудачная запись — неудача задания целиком.
	// Уже записанные варианты остаются на диске (идемпотентная
	// перезапись при повторе).
	g, gctx := errgroup.WithContext(ctx)
	for _, width := range variantWidths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			variant, err := encodeResized(src, width, format)
			if err != nil {
				return fmt.Errorf("вариант %d: %w", width, err)
			}
			if err := s.blobs.WriteVariant(rec.StoragePath, fmt.Sprintf("%d", width), variant); err != nil {
				return fmt.Errorf("вариант %d: %w", width, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("ошибка генерации вариантов для %s: %w", rec.ID, err)
	}

	s.logger.Info("Thumbnail-варианты сгенерированы",
		slog.String("file_id", rec.ID),
		slog.String("format", format),
	)
	return nil
}

// encodeResized уменьшает изображение до указанной ширины с сохранением
// пропорций и кодирует его в исходном формате.
// Lanczos-фильтр детерминирован: одинаковый вход даёт одинаковые байты.
func encodeResized(src image.Image, width int, format string) ([]byte, error) {
	resized := imaging.Resize(src, width, 0, imaging.Lanczos)

	outFormat, err := imaging.FormatFromExtension(format)
	if err != nil {
		// Формат без энкодера (например, webp) — кодируем в PNG
		outFormat = imaging.PNG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, outFormat); err != nil {
		return nil, fmt.Errorf("ошибка кодирования: %w", err)
	}
	return buf.Bytes(), nil
}
