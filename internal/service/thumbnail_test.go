package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"testing"

	"github.com/bigkaa/gofilehub/internal/domain/model"
	"github.com/bigkaa/gofilehub/internal/queue"
	"github.com/bigkaa/gofilehub/internal/repository"
	"github.com/bigkaa/gofilehub/internal/storage/blobstore"
)

// testPNG возвращает PNG-изображение указанного размера.
func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode ошибка: %v", err)
	}
	return buf.Bytes()
}

// thumbnailFixture готовит сервис с записью-изображением на диске.
func thumbnailFixture(t *testing.T, srcBytes []byte) (*ThumbnailService, *blobstore.BlobStore, *model.FileRecord) {
	t.Helper()

	blobs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("blobstore.New ошибка: %v", err)
	}

	rec := &model.FileRecord{
		ID:      testFileID,
		OwnerID: testOwnerID,
		Name:    "cat.png",
		Kind:    model.KindImage,
	}
	if srcBytes != nil {
		locator, err := blobs.Write(bytes.NewReader(srcBytes))
		if err != nil {
			t.Fatalf("Write ошибка: %v", err)
		}
		rec.StoragePath = locator
	}

	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, fileID string) (*model.FileRecord, error) {
			if fileID == rec.ID {
				return rec, nil
			}
			return nil, repository.ErrNotFound
		},
	}
	return NewThumbnailService(repo, blobs, slog.Default()), blobs, rec
}

// thumbnailJob собирает задание с указанным payload.
func thumbnailJob(t *testing.T, payload any) *queue.Job {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("json.Marshal ошибка: %v", err)
	}
	return &queue.Job{ID: 1, Type: queue.JobThumbnail, Payload: raw, Attempts: 1, MaxAttempts: 5}
}

// TestThumbnailService_Process проверяет генерацию трёх вариантов
// для корректного изображения.
func TestThumbnailService_Process(t *testing.T) {
	svc, blobs, rec := thumbnailFixture(t, testPNG(t, 800, 600))

	job := thumbnailJob(t, queue.ThumbnailPayload{FileID: rec.ID, UserID: rec.OwnerID})
	if err := svc.Process(context.Background(), job); err != nil {
		t.Fatalf("Process ошибка: %v", err)
	}

	// Все три варианта на диске, каждый — валидный PNG нужной ширины
	for _, tag := range []string{"500", "250", "100"} {
		data, err := blobs.ReadVariant(rec.StoragePath, tag)
		if err != nil {
			t.Fatalf("вариант %s не найден: %v", tag, err)
		}

		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("вариант %s не декодируется: %v", tag, err)
		}
		wantWidth := map[string]int{"500": 500, "250": 250, "100": 100}[tag]
		if img.Bounds().Dx() != wantWidth {
			t.Errorf("вариант %s: ширина = %d, ожидалась %d", tag, img.Bounds().Dx(), wantWidth)
		}
	}
}

// TestThumbnailService_Process_Idempotent проверяет, что повторная
// обработка того же задания даёт те же байты вариантов.
func TestThumbnailService_Process_Idempotent(t *testing.T) {
	svc, blobs, rec := thumbnailFixture(t, testPNG(t, 640, 480))
	job := thumbnailJob(t, queue.ThumbnailPayload{FileID: rec.ID, UserID: rec.OwnerID})
	ctx := context.Background()

	if err := svc.Process(ctx, job); err != nil {
		t.Fatalf("первый Process ошибка: %v", err)
	}
	first, err := blobs.ReadVariant(rec.StoragePath, "250")
	if err != nil {
		t.Fatalf("ReadVariant ошибка: %v", err)
	}

	// Повторная доставка того же задания
	if err := svc.Process(ctx, job); err != nil {
		t.Fatalf("повторный Process ошибка: %v", err)
	}
	second, err := blobs.ReadVariant(rec.StoragePath, "250")
	if err != nil {
		t.Fatalf("ReadVariant ошибка: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("повторная обработка изменила байты варианта")
	}
}

// TestThumbnailService_Process_TerminalFailures проверяет, что
// безнадёжные задания помечаются терминальными и не уходят на повтор.
func TestThumbnailService_Process_TerminalFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("битый payload", func(t *testing.T) {
		svc, _, _ := thumbnailFixture(t, testPNG(t, 10, 10))
		job := &queue.Job{ID: 1, Type: queue.JobThumbnail, Payload: []byte("{не json")}

		err := svc.Process(ctx, job)
		if err == nil || !IsTerminal(err) {
			t.Errorf("ошибка = %v, ожидалась терминальная", err)
		}
	})

	t.Run("payload без fileId", func(t *testing.T) {
		svc, _, _ := thumbnailFixture(t, testPNG(t, 10, 10))
		job := thumbnailJob(t, queue.ThumbnailPayload{UserID: testOwnerID})

		err := svc.Process(ctx, job)
		if err == nil || !IsTerminal(err) {
			t.Errorf("ошибка = %v, ожидалась терминальная", err)
		}
	})

	t.Run("payload без userId", func(t *testing.T) {
		svc, _, _ := thumbnailFixture(t, testPNG(t, 10, 10))
		job := thumbnailJob(t, queue.ThumbnailPayload{FileID: testFileID})

		err := svc.Process(ctx, job)
		if err == nil || !IsTerminal(err) {
			t.Errorf("ошибка = %v, ожидалась терминальная", err)
		}
	})

	t.Run("запись не найдена", func(t *testing.T) {
		svc, _, _ := thumbnailFixture(t, testPNG(t, 10, 10))
		job := thumbnailJob(t, queue.ThumbnailPayload{
			FileID: "eeeeeeee-eeee-eeee-eeee-eeeeeeeeeeee",
			UserID: testOwnerID,
		})

		err := svc.Process(ctx, job)
		if err == nil || !IsTerminal(err) {
			t.Errorf("ошибка = %v, ожидалась терминальная", err)
		}
	})

	t.Run("содержимое не изображение", func(t *testing.T) {
		svc, _, rec := thumbnailFixture(t, []byte("просто текст, не изображение"))
		job := thumbnailJob(t, queue.ThumbnailPayload{FileID: rec.ID, UserID: rec.OwnerID})

		err := svc.Process(ctx, job)
		if err == nil || !IsTerminal(err) {
			t.Errorf("ошибка = %v, ожидалась терминальная", err)
		}
	})
}

// TestThumbnailService_Process_NotImageKind проверяет терминальную
// неудачу для записи, которая не является изображением.
func TestThumbnailService_Process_NotImageKind(t *testing.T) {
	svc, _, rec := thumbnailFixture(t, testPNG(t, 10, 10))
	rec.Kind = model.KindFile

	job := thumbnailJob(t, queue.ThumbnailPayload{FileID: rec.ID, UserID: rec.OwnerID})
	err := svc.Process(context.Background(), job)
	if err == nil || !IsTerminal(err) {
		t.Errorf("ошибка = %v, ожидалась терминальная", err)
	}
}

// TestThumbnailService_Process_InfraErrorRetryable проверяет, что
// инфраструктурная ошибка repository остаётся повторяемой.
func TestThumbnailService_Process_InfraErrorRetryable(t *testing.T) {
	blobs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("blobstore.New ошибка: %v", err)
	}
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return nil, errors.New("соединение потеряно")
		},
	}
	svc := NewThumbnailService(repo, blobs, slog.Default())

	job := thumbnailJob(t, queue.ThumbnailPayload{FileID: testFileID, UserID: testOwnerID})
	err = svc.Process(context.Background(), job)
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if IsTerminal(err) {
		t.Error("инфраструктурная ошибка не должна быть терминальной")
	}
}

// TestValidSizeTag проверяет список поддерживаемых ширин вариантов.
func TestValidSizeTag(t *testing.T) {
	for _, tag := range []string{"500", "250", "100"} {
		if !ValidSizeTag(tag) {
			t.Errorf("ValidSizeTag(%q) = false, ожидался true", tag)
		}
	}
	for _, tag := range []string{"", "50", "640", "1000", "abc", "100px"} {
		if ValidSizeTag(tag) {
			t.Errorf("ValidSizeTag(%q) = true, ожидался false", tag)
		}
	}
}
