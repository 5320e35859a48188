// welcome.go — best-effort welcome-уведомление нового пользователя.
// Структурно тот же consumer, что и thumbnail pipeline, но без жёстких
// инвариантов: неудача ничего не ломает.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/gofilehub/internal/queue"
	"github.com/bigkaa/gofilehub/internal/repository"
)

// WelcomeService — consumer welcome-заданий.
type WelcomeService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewWelcomeService создаёт сервис welcome-уведомлений.
func NewWelcomeService(users repository.UserRepository, logger *slog.Logger) *WelcomeService {
	return &WelcomeService{
		users:  users,
		logger: logger.With(slog.String("component", "welcome")),
	}
}

// Process обрабатывает одно welcome-задание: находит пользователя
// и пишет приветствие в лог. Отправка реальной почты — забота
// notification-сервиса, сюда она не входит.
func (s *WelcomeService) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.WelcomePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return Terminal(fmt.Errorf("некорректный payload: %w", err))
	}
	if payload.UserID == "" {
		return Terminal(errors.New("в payload отсутствует userId"))
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Terminal(fmt.Errorf("пользователь %s не найден", payload.UserID))
		}
		return fmt.Errorf("ошибка чтения пользователя %s: %w", payload.UserID, err)
	}

	s.logger.Info(fmt.Sprintf("Welcome %s", user.Email),
		slog.String("user_id", user.ID),
	)
	return nil
}
