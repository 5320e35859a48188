// visibility.go — решение о видимости записи для запрашивающего.
package service

import "github.com/bigkaa/gofilehub/internal/domain/model"

// VisibilityGate решает, может ли запрашивающий читать запись.
// Применяется единообразно к чтению метаданных и содержимого.
type VisibilityGate struct{}

// NewVisibilityGate создаёт gate видимости.
func NewVisibilityGate() *VisibilityGate {
	return &VisibilityGate{}
}

// CanRead возвращает true, если запись публична либо requesterID —
// её владелец. Пустой requesterID — неаутентифицированный запрос:
// ему видны только публичные записи.
func (g *VisibilityGate) CanRead(rec *model.FileRecord, requesterID string) bool {
	return rec.IsPublic || (requesterID != "" && requesterID == rec.OwnerID)
}
