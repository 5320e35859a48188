// Пакет authclient — HTTP-клиент auth-сервиса.
// File Hub не выпускает и не валидирует сессионные токены сам:
// каждый токен разрешается в UserId внешним auth-сервисом.
// Поддерживает TLS с кастомным CA (FH_AUTH_CA_CERT_PATH).
package authclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client — HTTP-клиент auth-сервиса.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New создаёт клиент auth-сервиса.
// baseURL — базовый URL auth-сервиса (например, https://auth:8040).
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
func New(baseURL, caCertPath string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
	}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата auth-сервиса: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
		logger.Info("CA-сертификат auth-сервиса добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With(slog.String("component", "auth_client")),
	}, nil
}

// resolveResponse — тело успешного ответа auth-сервиса.
type resolveResponse struct {
	UserID string `json:"userId"`
}

// ResolveUser разрешает сессионный токен в UserId.
// Возвращает пустую строку без ошибки, если токен неизвестен или
// просрочен (401/404 от auth-сервиса) — аноним, не сбой.
//
// Формат запроса: GET {baseURL}/api/v1/auth/resolve, токен в X-Token.
func (c *Client) ResolveUser(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/auth/resolve", http.NoBody)
	if err != nil {
		return "", fmt.Errorf("создание запроса resolve: %w", err)
	}
	req.Header.Set("X-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("запрос к auth-сервису: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body resolveResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("разбор ответа auth-сервиса: %w", err)
		}
		if body.UserID == "" {
			return "", fmt.Errorf("auth-сервис вернул пустой userId")
		}
		return body.UserID, nil
	case http.StatusUnauthorized, http.StatusNotFound:
		// Неизвестный или просроченный токен — аноним
		return "", nil
	default:
		return "", fmt.Errorf("auth-сервис вернул статус %d", resp.StatusCode)
	}
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата %s: %w", caCertPath, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("некорректный PEM в %s", caCertPath)
	}

	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    pool,
	}, nil
}
