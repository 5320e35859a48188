// auth.go — middleware аутентификации через внешний auth-сервис.
// Сессионный токен из заголовка X-Token разрешается в UserId;
// File Hub не валидирует токены сам.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/gofilehub/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// contextKeyUserID — UserId аутентифицированного пользователя в контексте запроса.
const contextKeyUserID contextKey = "user_id"

// TokenHeader — заголовок с сессионным токеном.
const TokenHeader = "X-Token"

// UserResolver — разрешение сессионного токена в UserId.
// Реализуется authclient.Client; пустой UserId без ошибки — аноним.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (string, error)
}

// UserID возвращает UserId из контекста запроса.
// Пустая строка — запрос не аутентифицирован.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyUserID).(string)
	return id
}

// RequireAuth возвращает middleware, требующий валидный токен.
// Запрос без токена или с неизвестным токеном — 401.
// Ошибка auth-сервиса — 500 (недоступность auth не маскируется под 401).
func RequireAuth(resolver UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := resolveRequest(resolver, r, logger)
			if err != nil {
				apierrors.InternalError(w, "Ошибка проверки аутентификации")
				return
			}
			if userID == "" {
				apierrors.Unauthorized(w, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth возвращает middleware, разрешающий токен при его наличии,
// но пропускающий и анонимные запросы. Используется на чтении
// содержимого: публичные записи доступны без аутентификации.
func OptionalAuth(resolver UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := resolveRequest(resolver, r, logger)
			if err != nil {
				apierrors.InternalError(w, "Ошибка проверки аутентификации")
				return
			}

			ctx := r.Context()
			if userID != "" {
				ctx = context.WithValue(ctx, contextKeyUserID, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveRequest разрешает токен запроса в UserId.
func resolveRequest(resolver UserResolver, r *http.Request, logger *slog.Logger) (string, error) {
	token := r.Header.Get(TokenHeader)
	if token == "" {
		return "", nil
	}

	userID, err := resolver.ResolveUser(r.Context(), token)
	if err != nil {
		logger.Error("Ошибка разрешения токена",
			slog.String("error", err.Error()),
		)
		return "", err
	}
	return userID, nil
}
