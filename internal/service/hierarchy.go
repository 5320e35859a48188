// hierarchy.go — валидация ссылок на родительскую папку.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/bigkaa/gofilehub/internal/domain/model"
	"github.com/bigkaa/gofilehub/internal/repository"
)

// HierarchyValidator проверяет кандидата в родители перед созданием записи.
// Только читает через репозиторий, никогда не мутирует.
type HierarchyValidator struct {
	files repository.FileRepository
}

// NewHierarchyValidator создаёт валидатор иерархии.
func NewHierarchyValidator(files repository.FileRepository) *HierarchyValidator {
	return &HierarchyValidator{files: files}
}

// ValidateParent проверяет, что parent — корневой sentinel либо
// существующая папка.
//
// Корень валиден всегда и для всех: адресация корня общая, per-user
// изоляция контента обеспечивается owner_id каждой записи. Владение
// родительской папкой намеренно не проверяется — любая существующая
// папка может быть родителем; более строгий скоупинг добавляется
// на вызывающей стороне.
//
// Циклы невозможны по построению: родителем может стать только уже
// существующая запись, поэтому граф родителей ацикличен по индукции.
func (v *HierarchyValidator) ValidateParent(ctx context.Context, parent model.ParentRef) error {
	if parent.IsRoot() {
		return nil
	}

	// Синтаксически некорректный идентификатор неотличим от
	// отсутствующей записи
	if _, err := uuid.Parse(parent.ID()); err != nil {
		return ErrParentNotFound
	}

	rec, err := v.files.GetByID(ctx, parent.ID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrParentNotFound
		}
		return err
	}

	if rec.Kind != model.KindFolder {
		return ErrParentNotFolder
	}
	return nil
}
