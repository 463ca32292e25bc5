package entities

import (
	"context"

	"github.com/dmitrijs2005/gophsync/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, e *models.Entity) error
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	Delete(ctx context.Context, id string) (bool, error)
}
