// Пакет service — бизнес-логика File Hub.
// errors.go — доменные ошибки сервисного слоя.
// Handlers переводят их в HTTP-ответы; внутренние ошибки
// (StorageError) пробрасываются обёрнутыми через %w.
package service

import "errors"

// Доменные ошибки сервисного слоя.
var (
	// ErrNotFound — запись не найдена или невидима для запрашивающего.
	// Чужая приватная запись намеренно неотличима от отсутствующей.
	ErrNotFound = errors.New("запись не найдена")

	// ErrMissingName — не задано имя записи.
	ErrMissingName = errors.New("не задано имя")
	// ErrMissingType — не задан или недопустим тип записи.
	ErrMissingType = errors.New("не задан тип")
	// ErrMissingData — не задано содержимое для записи типа file/image.
	ErrMissingData = errors.New("не задано содержимое")
	// ErrInvalidData — содержимое не является корректным base64.
	ErrInvalidData = errors.New("некорректное содержимое")

	// ErrParentNotFound — родитель не существует или идентификатор
	// синтаксически некорректен.
	ErrParentNotFound = errors.New("родитель не найден")
	// ErrParentNotFolder — родитель существует, но не является папкой.
	ErrParentNotFolder = errors.New("родитель не является папкой")
)

// terminalError — обёртка терминальной ошибки pipeline:
// повторная доставка задания бессмысленна.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal помечает ошибку как терминальную для очереди заданий.
func Terminal(err error) error {
	return &terminalError{err: err}
}

// IsTerminal сообщает, является ли ошибка терминальной.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}
