package blobstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestNew_CreatesDirectory проверяет создание директории данных.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	bs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	if bs.DataDir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, bs.DataDir())
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestWrite проверяет запись содержимого и уникальность локаторов.
func TestWrite(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	content := []byte("Hello, World! Тестовые данные.")

	loc1, err := bs.Write(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}
	loc2, err := bs.Write(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("ошибка повторной записи: %v", err)
	}

	// Одинаковое содержимое — разные локаторы (дедупликации нет)
	if loc1 == loc2 {
		t.Errorf("локаторы должны быть уникальными: %s == %s", loc1, loc2)
	}

	data, err := bs.Read(loc1)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("прочитанное содержимое не совпадает с записанным")
	}

	// Temp файлов не должно остаться
	entries, err := os.ReadDir(bs.DataDir())
	if err != nil {
		t.Fatalf("ошибка чтения директории: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("остался временный файл: %s", e.Name())
		}
	}
}

// TestWrite_RecreatesDirectory проверяет идемпотентное создание
// директории при записи.
func TestWrite_RecreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	bs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	// Удаляем директорию после инициализации
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("ошибка удаления директории: %v", err)
	}

	loc, err := bs.Write(bytes.NewReader([]byte("данные")))
	if err != nil {
		t.Fatalf("запись должна пересоздать директорию: %v", err)
	}
	if _, err := bs.Read(loc); err != nil {
		t.Errorf("содержимое не найдено после записи: %v", err)
	}
}

// TestWriteVariant проверяет детерминированное имя варианта
// и идемпотентную перезапись.
func TestWriteVariant(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	loc, err := bs.Write(bytes.NewReader([]byte("оригинал")))
	if err != nil {
		t.Fatalf("ошибка записи оригинала: %v", err)
	}

	variant := []byte("вариант 250")
	if err := bs.WriteVariant(loc, "250", variant); err != nil {
		t.Fatalf("ошибка записи варианта: %v", err)
	}

	// Вариант лежит рядом с оригиналом по детерминированному имени
	if _, err := os.Stat(filepath.Join(bs.DataDir(), loc+"_250")); err != nil {
		t.Errorf("вариант не найден по детерминированному пути: %v", err)
	}

	data, err := bs.ReadVariant(loc, "250")
	if err != nil {
		t.Fatalf("ошибка чтения варианта: %v", err)
	}
	if !bytes.Equal(data, variant) {
		t.Error("содержимое варианта не совпадает")
	}

	// Повторная запись перезаписывает вариант
	variant2 := []byte("вариант 250 версия 2")
	if err := bs.WriteVariant(loc, "250", variant2); err != nil {
		t.Fatalf("ошибка перезаписи варианта: %v", err)
	}
	data, err = bs.ReadVariant(loc, "250")
	if err != nil {
		t.Fatalf("ошибка чтения после перезаписи: %v", err)
	}
	if !bytes.Equal(data, variant2) {
		t.Error("перезапись варианта не применилась")
	}
}

// TestRead_NotFound проверяет ErrBlobNotFound для отсутствующего содержимого.
func TestRead_NotFound(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	if _, err := bs.Read("no-such-locator"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("ожидалась ErrBlobNotFound, получено: %v", err)
	}
	if _, err := bs.ReadVariant("no-such-locator", "100"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("ожидалась ErrBlobNotFound для варианта, получено: %v", err)
	}
	if _, err := bs.Open("no-such-locator"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("ожидалась ErrBlobNotFound при открытии, получено: %v", err)
	}
}

// TestRemove проверяет удаление содержимого и идемпотентность
// повторного удаления.
func TestRemove(t *testing.T) {
	bs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	loc, err := bs.Write(bytes.NewReader([]byte("временные данные")))
	if err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	if err := bs.Remove(loc); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if _, err := bs.Read(loc); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("содержимое осталось после удаления: %v", err)
	}

	// Повторное удаление — не ошибка
	if err := bs.Remove(loc); err != nil {
		t.Errorf("повторное удаление: %v", err)
	}
}

// TestVariantLocator проверяет формат локатора варианта.
func TestVariantLocator(t *testing.T) {
	if got := VariantLocator("abc", "500"); got != "abc_500" {
		t.Errorf("VariantLocator = %q, ожидалось abc_500", got)
	}
}
