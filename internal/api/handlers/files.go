// files.go — обработчики операций над иерархией файлов.
// Wire-формат совместим с исходным API files_manager: ключ userId,
// parentId корня — число 0, страницы по 20 записей.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/gofilehub/internal/api/errors"
	"github.com/bigkaa/gofilehub/internal/api/middleware"
	"github.com/bigkaa/gofilehub/internal/domain/model"
	"github.com/bigkaa/gofilehub/internal/service"
)

// uploadRequest — тело POST /api/v1/files.
type uploadRequest struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	IsPublic bool            `json:"isPublic"`
	Parent   model.ParentRef `json:"parentId"`
	Data     string          `json:"data"`
}

// HandleUpload — POST /api/v1/files.
// Создаёт папку, файл или изображение. Для изображений ставит
// thumbnail-задание в очередь.
func (h *APIHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserID(r.Context())

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	rec, err := h.fileService.Create(r.Context(), service.CreateParams{
		OwnerID:  ownerID,
		Name:     req.Name,
		Kind:     req.Type,
		IsPublic: req.IsPublic,
		Parent:   req.Parent,
		Data:     req.Data,
	})
	if err != nil {
		h.writeCreateError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// writeCreateError переводит доменные ошибки создания в HTTP-ответы.
func (h *APIHandler) writeCreateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingName):
		apierrors.ValidationError(w, "Missing name")
	case errors.Is(err, service.ErrMissingType):
		apierrors.ValidationError(w, "Missing type")
	case errors.Is(err, service.ErrMissingData):
		apierrors.ValidationError(w, "Missing data")
	case errors.Is(err, service.ErrInvalidData):
		apierrors.ValidationError(w, "Data is not valid base64")
	case errors.Is(err, service.ErrParentNotFound):
		apierrors.ValidationError(w, "Parent not found")
	case errors.Is(err, service.ErrParentNotFolder):
		apierrors.ValidationError(w, "Parent is not a folder")
	default:
		h.logger.Error("Ошибка создания записи",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при создании записи")
	}
}

// HandleShow — GET /api/v1/files/{id}.
// Метаданные записи владельца; чужая запись — 404.
func (h *APIHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserID(r.Context())
	fileID := chi.URLParam(r, "id")

	rec, err := h.fileService.Get(r.Context(), ownerID, fileID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Not found")
			return
		}
		h.logger.Error("Ошибка получения записи",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении записи")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// HandleIndex — GET /api/v1/files?parentId=&page=.
// Страница записей владельца; деградирует до пустого списка, не ошибки.
func (h *APIHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserID(r.Context())

	parent := model.ParseParentRef(r.URL.Query().Get("parentId"))

	// Нечисловая страница — пустой список (политика fail soft)
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		var err error
		page, err = strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusOK, []*model.FileRecord{})
			return
		}
	}

	records, err := h.fileService.List(r.Context(), ownerID, parent, page)
	if err != nil {
		h.logger.Error("Ошибка листинга записей",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при листинге записей")
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// HandlePublish — PUT /api/v1/files/{id}/publish.
func (h *APIHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	h.setPublic(w, r, true)
}

// HandleUnpublish — PUT /api/v1/files/{id}/unpublish.
func (h *APIHandler) HandleUnpublish(w http.ResponseWriter, r *http.Request) {
	h.setPublic(w, r, false)
}

// setPublic — общая реализация publish/unpublish.
func (h *APIHandler) setPublic(w http.ResponseWriter, r *http.Request, isPublic bool) {
	ownerID := middleware.UserID(r.Context())
	fileID := chi.URLParam(r, "id")

	rec, err := h.fileService.SetPublic(r.Context(), ownerID, fileID, isPublic)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Not found")
			return
		}
		h.logger.Error("Ошибка изменения видимости",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при изменении видимости")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// HandleData — GET /api/v1/files/{id}/data?size=.
// Содержимое записи или её thumbnail-варианта. Аутентификация
// опциональна: публичные записи отдаются анониму. Отсутствие,
// невидимость, папка и отсутствующий вариант неразличимы — 404.
func (h *APIHandler) HandleData(w http.ResponseWriter, r *http.Request) {
	requesterID := middleware.UserID(r.Context())
	fileID := chi.URLParam(r, "id")
	sizeTag := r.URL.Query().Get("size")

	data, contentType, err := h.fileService.ReadContent(r.Context(), requesterID, fileID, sizeTag)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Not found")
		default:
			h.logger.Error("Ошибка чтения содержимого",
				slog.String("file_id", fileID),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при чтении содержимого")
		}
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
