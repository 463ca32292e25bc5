// Package attachments persists attachment metadata in the local SQLite store.
// File bytes live under the uploads directory, keyed by StorageName.
package attachments

import (
	"context"

	"github.com/dmitrijs2005/gophsync/internal/models"
)

type Repository interface {
	// CreateOrUpdate inserts a or overwrites the row with the same ID, flagging it
	// UNSYNCED and setting a.Revision.
	CreateOrUpdate(ctx context.Context, a *models.Attachment) error
	GetByID(ctx context.Context, id string) (*models.Attachment, error)
	List(ctx context.Context) ([]models.Attachment, error)
	ListByOwner(ctx context.Context, entityID string) ([]models.Attachment, error)
	Delete(ctx context.Context, id string) error
	// DeleteByOwner removes every attachment of entityID and returns them.
	DeleteByOwner(ctx context.Context, entityID string) ([]models.Attachment, error)
	ListPending(ctx context.Context, p models.Priority, limit int) ([]models.Attachment, error)
	MarkSynced(ctx context.Context, id string, revision int64) (bool, error)
	CountPending(ctx context.Context) (int, error)
}
