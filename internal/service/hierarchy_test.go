package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bigkaa/gofilehub/internal/domain/model"
	"github.com/bigkaa/gofilehub/internal/repository"
)

// TestHierarchyValidator_Root проверяет, что корневой sentinel
// валиден без обращения к repository.
func TestHierarchyValidator_Root(t *testing.T) {
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			t.Error("GetByID не должен вызываться для корня")
			return nil, repository.ErrNotFound
		},
	}
	v := NewHierarchyValidator(repo)

	if err := v.ValidateParent(context.Background(), model.RootParent()); err != nil {
		t.Errorf("ValidateParent(root) = %v, ожидался nil", err)
	}
}

// TestHierarchyValidator_ValidateParent проверяет исходы валидации
// для разных кандидатов в родители.
func TestHierarchyValidator_ValidateParent(t *testing.T) {
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, fileID string) (*model.FileRecord, error) {
			switch fileID {
			case testFolderID:
				return &model.FileRecord{ID: testFolderID, Kind: model.KindFolder}, nil
			case testFileID:
				return &model.FileRecord{ID: testFileID, Kind: model.KindImage}, nil
			}
			return nil, repository.ErrNotFound
		},
	}
	v := NewHierarchyValidator(repo)

	tests := []struct {
		name    string
		parent  model.ParentRef
		wantErr error
	}{
		{
			name:    "существующая папка",
			parent:  model.ParentOf(testFolderID),
			wantErr: nil,
		},
		{
			name:    "отсутствующая запись",
			parent:  model.ParentOf("eeeeeeee-eeee-eeee-eeee-eeeeeeeeeeee"),
			wantErr: ErrParentNotFound,
		},
		{
			name:    "синтаксически некорректный идентификатор",
			parent:  model.ParentOf("not-a-uuid"),
			wantErr: ErrParentNotFound,
		},
		{
			name:    "родитель — изображение, не папка",
			parent:  model.ParentOf(testFileID),
			wantErr: ErrParentNotFolder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateParent(context.Background(), tt.parent)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateParent = %v, ожидалась %v", err, tt.wantErr)
			}
		})
	}
}

// TestHierarchyValidator_RepoError проверяет, что инфраструктурная
// ошибка repository не маскируется под ErrParentNotFound.
func TestHierarchyValidator_RepoError(t *testing.T) {
	infraErr := errors.New("соединение потеряно")
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return nil, infraErr
		},
	}
	v := NewHierarchyValidator(repo)

	err := v.ValidateParent(context.Background(), model.ParentOf(testFolderID))
	if !errors.Is(err, infraErr) {
		t.Errorf("ValidateParent = %v, ожидалась инфраструктурная ошибка", err)
	}
	if errors.Is(err, ErrParentNotFound) {
		t.Error("инфраструктурная ошибка замаскирована под ErrParentNotFound")
	}
}
