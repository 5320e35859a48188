// Пакет queue — долговечная очередь заданий с at-least-once доставкой.
// Producer (upload-путь) и consumer (worker) получают один явно
// сконструированный экземпляр; глобального состояния нет.
package queue

import (
	"context"
	"encoding/json"
	"errors"
)

// Типы заданий.
const (
	// JobThumbnail — генерация thumbnail-вариантов изображения.
	JobThumbnail = "thumbnail"
	// JobWelcome — best-effort welcome-уведомление нового пользователя.
	JobWelcome = "welcome"
)

// ErrClosed — очередь закрыта, операции невозможны.
var ErrClosed = errors.New("очередь закрыта")

// ThumbnailPayload — полезная нагрузка задания thumbnail.
type ThumbnailPayload struct {
	// FileID — UUID записи изображения
	FileID string `json:"fileId"`
	// UserID — UUID владельца
	UserID string `json:"userId"`
}

// WelcomePayload — полезная нагрузка задания welcome.
type WelcomePayload struct {
	// UserID — UUID нового пользователя
	UserID string `json:"userId"`
}

// Job — задание, полученное consumer-ом.
// Доставка at-least-once: после падения consumer-а до Ack задание
// будет доставлено повторно.
type Job struct {
	// ID — идентификатор задания в очереди
	ID int64
	// Type — тип задания (thumbnail/welcome)
	Type string
	// Payload — полезная нагрузка (JSON)
	Payload json.RawMessage
	// Attempts — номер текущей попытки (с 1)
	Attempts int
	// MaxAttempts — лимит попыток до dead-letter
	MaxAttempts int
}

// Queue — контракт очереди заданий.
type Queue interface {
	// Enqueue помещает задание в очередь. Возвращает управление после
	// долговечного принятия задания, не после его обработки.
	Enqueue(ctx context.Context, jobType string, payload any) error
	// Receive блокируется до появления задания или отмены контекста.
	// Полученное задание захвачено текущим consumer-ом до Ack/Fail.
	Receive(ctx context.Context) (*Job, error)
	// Ack подтверждает успешную обработку: задание покидает очередь.
	Ack(ctx context.Context, job *Job) error
	// Fail фиксирует неудачу. terminal=true или исчерпание попыток
	// переводит задание в dead-letter; иначе оно будет доставлено
	// повторно с задержкой.
	Fail(ctx context.Context, job *Job, cause error, terminal bool) error
}
