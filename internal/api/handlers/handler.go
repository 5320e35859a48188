// Пакет handlers — HTTP-обработчики API File Hub.
// handler.go — конструктор APIHandler и общие помощники.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/gofilehub/internal/service"
)

// APIHandler — обработчики бизнес-endpoints File Hub.
type APIHandler struct {
	fileService *service.FileService
	health      *HealthHandler
	logger      *slog.Logger
}

// NewAPIHandler создаёт обработчик API.
func NewAPIHandler(fileService *service.FileService, health *HealthHandler, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		fileService: fileService,
		health:      health,
		logger:      logger.With(slog.String("component", "api")),
	}
}

// Health возвращает обработчик health endpoints.
func (h *APIHandler) Health() *HealthHandler {
	return h.health
}

// writeJSON записывает JSON-ответ с указанным статус-кодом.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
