package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// User — минимальная проекция пользователя из таблицы users.
// Таблица принадлежит account-сервису; File Hub читает её только
// для welcome-уведомлений.
type User struct {
	// ID — UUID пользователя
	ID string
	// Email — адрес для welcome-уведомления
	Email string
	// CreatedAt — момент регистрации
	CreatedAt time.Time
}

// UserRepository — read-only доступ к пользователям.
type UserRepository interface {
	// GetByID возвращает пользователя по UUID.
	GetByID(ctx context.Context, userID string) (*User, error)
}

// userRepo — реализация UserRepository через pgx.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

// GetByID возвращает пользователя по UUID или ErrNotFound.
func (r *userRepo) GetByID(ctx context.Context, userID string) (*User, error) {
	if !validUUID(userID) {
		return nil, ErrNotFound
	}

	var u User
	err := r.db.QueryRow(ctx,
		`SELECT user_id, email, created_at FROM users WHERE user_id = $1`,
		userID,
	).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return &u, nil
}
