package database

import (
	"context"

	"github.com/benvon/todo-reset/internal/models"
	"github.com/google/uuid"
)

// EntryRepositoryInterface is the entry persistence used by the lifecycle manager.
type EntryRepositoryInterface interface {
	Create(ctx context.Context, e *models.Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Entry, error)
	FindByUniqueID(ctx context.Context, uniqueID string) (*models.Entry, error)
	List(ctx context.Context) ([]*models.Entry, error)
	Update(ctx context.Context, e *models.Entry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ResourceRepositoryInterface is the resource store used by the frontend registrar.
type ResourceRepositoryInterface interface {
	Ping(ctx context.Context) error
	List(ctx context.Context) ([]models.CardResource, error)
	Create(ctx context.Context, resType, url string) (models.CardResource, error)
	UpdateURL(ctx context.Context, id, url string) error
	Delete(ctx context.Context, id string) error
}

// Ensure concrete types implement the interfaces
var (
	_ EntryRepositoryInterface    = (*EntryRepository)(nil)
	_ ResourceRepositoryInterface = (*ResourceRepository)(nil)
)
