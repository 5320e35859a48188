// Пакет model — доменные модели File Hub.
// file.go — FileRecord (запись иерархии файлов) и ParentRef (ссылка на родителя).
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// FileKind — тип записи иерархии.
type FileKind string

const (
	// KindFolder — папка, не имеет содержимого на диске.
	KindFolder FileKind = "folder"
	// KindFile — обычный файл.
	KindFile FileKind = "file"
	// KindImage — изображение, для него генерируются thumbnail-варианты.
	KindImage FileKind = "image"
)

// ValidKind проверяет, что строка — допустимый тип записи.
func ValidKind(s string) bool {
	switch FileKind(s) {
	case KindFolder, KindFile, KindImage:
		return true
	}
	return false
}

// RootMarker — текстовое представление корневого sentinel на wire-уровне.
// Клиенты передают parentId="0" (или число 0) для записей верхнего уровня.
const RootMarker = "0"

// ParentRef — ссылка на родительскую папку: либо корневой sentinel,
// либо UUID существующей записи типа folder.
//
// Единственное представление sentinel во всех слоях (запись, чтение,
// листинг) — устраняет неоднозначность строка/число/отсутствие поля,
// свойственную wire-формату.
type ParentRef struct {
	// id — UUID родительской папки. Пустая строка — корень.
	id string
}

// RootParent возвращает корневой sentinel.
func RootParent() ParentRef {
	return ParentRef{}
}

// ParentOf возвращает ссылку на папку с указанным id.
func ParentOf(id string) ParentRef {
	return ParentRef{id: id}
}

// IsRoot возвращает true, если ссылка — корневой sentinel.
func (p ParentRef) IsRoot() bool {
	return p.id == ""
}

// ID возвращает UUID родительской папки. Для корня — пустая строка.
func (p ParentRef) ID() string {
	return p.id
}

// String возвращает wire-представление: "0" для корня, иначе UUID.
func (p ParentRef) String() string {
	if p.IsRoot() {
		return RootMarker
	}
	return p.id
}

// ParseParentRef разбирает wire-значение parentId.
// Допустимые формы корня: отсутствие значения (""), строка "0".
// Всё остальное трактуется как кандидат-идентификатор; его существование
// и тип проверяет HierarchyValidator, не эта функция.
func ParseParentRef(raw string) ParentRef {
	if raw == "" || raw == RootMarker {
		return RootParent()
	}
	return ParentOf(raw)
}

// MarshalJSON сериализует ParentRef в wire-формат ответов API:
// число 0 для корня, строка UUID для ссылки на папку.
func (p ParentRef) MarshalJSON() ([]byte, error) {
	if p.IsRoot() {
		return []byte("0"), nil
	}
	return json.Marshal(p.id)
}

// UnmarshalJSON принимает число 0, строку "0" или строку UUID.
func (p *ParentRef) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*p = ParseParentRef(asString)
		return nil
	}
	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		if asNumber != 0 {
			return fmt.Errorf("недопустимое числовое значение parentId: %d", asNumber)
		}
		*p = RootParent()
		return nil
	}
	return fmt.Errorf("недопустимое значение parentId: %s", string(data))
}

// FileRecord — запись иерархии файлов: папка, файл или изображение.
// Центральная сущность File Hub, хранится в таблице files.
type FileRecord struct {
	// ID — UUID записи, назначается хранилищем при создании. Неизменяем.
	ID string `json:"id"`
	// OwnerID — UUID владельца. Неизменяем.
	OwnerID string `json:"userId"`
	// Name — отображаемое имя, непустое. Уникальность не требуется.
	Name string `json:"name"`
	// Kind — тип записи (folder/file/image). Неизменяем.
	Kind FileKind `json:"type"`
	// IsPublic — публичная видимость. Меняется только владельцем
	// через publish/unpublish.
	IsPublic bool `json:"isPublic"`
	// Parent — ссылка на родительскую папку или корневой sentinel.
	Parent ParentRef `json:"parentId"`
	// StoragePath — локатор содержимого в blobstore.
	// Пустой для папок (инвариант: заполнен ⟺ kind != folder).
	StoragePath string `json:"-"`
	// CreatedAt — момент создания записи.
	CreatedAt time.Time `json:"-"`
}

// HasContent возвращает true, если запись должна иметь содержимое на диске.
func (r *FileRecord) HasContent() bool {
	return r.Kind != KindFolder
}
