// Пакет blobstore — операции с содержимым файлов на диске.
// Выдаёт непрозрачные локаторы (UUID) при записи, хранит производные
// варианты изображений рядом с оригиналом по детерминированному имени
// {locator}_{sizeTag}.
package blobstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrBlobNotFound — содержимое по локатору отсутствует на диске.
var ErrBlobNotFound = errors.New("содержимое не найдено")

// BlobStore — управление содержимым файлов на диске.
type BlobStore struct {
	// dataDir — корневая директория хранения (FH_DATA_DIR)
	dataDir string
}

// New создаёт новый BlobStore. Проверяет и создаёт директорию,
// если она не существует.
func New(dataDir string) (*BlobStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &BlobStore{dataDir: dataDir}, nil
}

// Write записывает данные из reader на диск и возвращает свежий локатор.
// Локатор — случайный UUID: два одинаковых содержимых получают разные
// локаторы (дедупликации нет).
//
// Паттерн: MkdirAll → temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (bs *BlobStore) Write(reader io.Reader) (string, error) {
	// Директория могла исчезнуть после старта — создание идемпотентно
	if err := os.MkdirAll(bs.dataDir, 0o750); err != nil {
		return "", fmt.Errorf("не удалось создать директорию данных: %w", err)
	}

	locator := uuid.New().String()
	if err := bs.writeAtomic(locator, reader); err != nil {
		return "", err
	}
	return locator, nil
}

// WriteVariant записывает производный вариант по детерминированному
// локатору {locator}_{sizeTag}. Повторная запись перезаписывает
// предыдущий вариант (идемпотентная перезапись).
func (bs *BlobStore) WriteVariant(locator, sizeTag string, data []byte) error {
	if err := os.MkdirAll(bs.dataDir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию данных: %w", err)
	}
	return bs.writeAtomic(VariantLocator(locator, sizeTag), bytes.NewReader(data))
}

// writeAtomic записывает поток во временный файл и атомарно
// переименовывает его в целевой.
func (bs *BlobStore) writeAtomic(name string, reader io.Reader) error {
	fullPath := filepath.Join(bs.dataDir, name)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

// Read возвращает содержимое по локатору целиком.
// Отсутствующий blob — ErrBlobNotFound.
func (bs *BlobStore) Read(locator string) ([]byte, error) {
	f, err := bs.Open(locator)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", locator, err)
	}
	return data, nil
}

// ReadVariant возвращает содержимое производного варианта.
// Отсутствующий вариант — ErrBlobNotFound.
func (bs *BlobStore) ReadVariant(locator, sizeTag string) ([]byte, error) {
	return bs.Read(VariantLocator(locator, sizeTag))
}

// Open открывает содержимое по локатору для потокового чтения.
// Вызывающий код обязан закрыть файл.
func (bs *BlobStore) Open(locator string) (*os.File, error) {
	f, err := os.Open(filepath.Join(bs.dataDir, locator))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("ошибка открытия %s: %w", locator, err)
	}
	return f, nil
}

// Remove удаляет содержимое по локатору. Используется для отката
// осиротевшей записи содержимого. Уже отсутствующий blob — не ошибка.
func (bs *BlobStore) Remove(locator string) error {
	if err := os.Remove(filepath.Join(bs.dataDir, locator)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления %s: %w", locator, err)
	}
	return nil
}

// DataDir возвращает путь к директории данных.
func (bs *BlobStore) DataDir() string {
	return bs.dataDir
}

// VariantLocator строит детерминированный локатор производного
// варианта: {locator}_{sizeTag}. Read-путь конструирует адрес варианта
// без обращения к метаданным.
func VariantLocator(locator, sizeTag string) string {
	return locator + "_" + sizeTag
}
