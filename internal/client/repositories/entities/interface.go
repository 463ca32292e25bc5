package entities

import (
	"context"

	"github.com/dmitrijs2005/gophsync/internal/models"
)

// Repository describes the local persistence of entities.
type Repository interface {
	// CreateOrUpdate inserts e or overwrites the stored row with the same ID. The row
	// becomes UNSYNCED and e.Revision is set to the new revision.
	CreateOrUpdate(ctx context.Context, e *models.Entity) error

	// GetByID returns common.ErrNotFound when no row matches.
	GetByID(ctx context.Context, id string) (*models.Entity, error)

	// List returns all entities, most recently updated first.
	List(ctx context.Context) ([]models.Entity, error)

	// Search matches query case-insensitively against title and body.
	Search(ctx context.Context, query string) ([]models.Entity, error)

	// Delete removes the row; common.ErrNotFound when it does not exist.
	Delete(ctx context.Context, id string) error

	// ListPending returns up to limit UNSYNCED entities of one priority,
	// oldest change first.
	ListPending(ctx context.Context, p models.Priority, limit int) ([]models.Entity, error)

	// MarkSynced flags the row SYNCED if its revision still equals revision.
	MarkSynced(ctx context.Context, id string, revision int64) (bool, error)

	CountPending(ctx context.Context) (int, error)
}
