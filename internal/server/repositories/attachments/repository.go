package attachments

import (
	"context"

	"github.com/dmitrijs2005/gophsync/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, a *models.Attachment) error
	GetByID(ctx context.Context, id string) (*models.Attachment, error)
	Delete(ctx context.Context, id string) (storageKey string, err error)
	DeleteByOwner(ctx context.Context, ownerID string) (storageKeys []string, err error)
}
