// Package services is the client façade. Every write goes to the local store
// first and is returned from there; replication is only ever triggered, never
// awaited, so remote failures cannot fail a local operation.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/repositories/attachments"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/deletes"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophsync/internal/client/syncer"
	"github.com/dmitrijs2005/gophsync/internal/client/transfer"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/google/uuid"
)

// Syncer is the part of the sync engine the façade talks to.
type Syncer interface {
	NotifyUpsert(kind models.RecordKind, id string)
	NotifyDelete(kind models.RecordKind, id string)
	Snapshot() syncer.Snapshot
	ForceSync(ctx context.Context) error
	Restore(ctx context.Context) error
}

// Transfers is implemented by *transfer.Manager.
type Transfers interface {
	Config() transfer.Config
	Save(ctx context.Context, data []byte, name, contentType string) (models.Attachment, error)
	SaveStreaming(ctx context.Context, sourcePath, name, contentType string, onProgress transfer.ProgressFunc) (models.Attachment, error)
	Initialize(name string, totalSize int64, contentType string) (string, error)
	AppendChunk(ctx context.Context, id string, data []byte, index int) (transfer.Progress, error)
	Finalize(ctx context.Context, id string) (models.Attachment, error)
	Cancel(id string) (bool, error)
	Progress(id string) (transfer.Progress, error)
	Remove(storageName string) error
}

type Deps struct {
	DB          *sql.DB
	Entities    entities.Repository
	Attachments attachments.Repository
	Deletes     deletes.Repository
	Metadata    metadata.Repository // optional
	Files       Transfers
	Sync        Syncer
	// Prober is optional; without it the network is reported unreachable.
	Prober syncer.Prober
	Now    func() time.Time
}

// EntityInput is the caller-supplied part of an entity write. A zero
// Priority means MEDIUM on create and "unchanged" on update.
type EntityInput struct {
	models.Payload
	Priority models.Priority
}

type EntityService struct {
	deps   Deps
	logger logging.Logger
	now    func() time.Time
	newID  func() string
}

func NewEntityService(deps Deps, logger logging.Logger) *EntityService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &EntityService{
		deps:   deps,
		logger: logger.With("module", "services"),
		now:    now,
		newID:  uuid.NewString,
	}
}

// stamp returns the current time at the precision the local store keeps, so
// returned records compare equal to what a later read yields.
func (s *EntityService) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *EntityService) CreateEntity(ctx context.Context, in EntityInput) (*models.Entity, error) {
	payload, err := normalizePayload(in.Payload)
	if err != nil {
		return nil, err
	}
	if err := validatePriority(in.Priority); err != nil {
		return nil, err
	}

	now := s.stamp()
	e := &models.Entity{
		ID:           s.newID(),
		Payload:      payload,
		CreatedAt:    now,
		UpdatedAt:    now,
		SyncPriority: in.Priority.OrDefault(),
	}
	if err := s.deps.Entities.CreateOrUpdate(ctx, e); err != nil {
		return nil, fmt.Errorf("create entity: %w", err)
	}

	s.deps.Sync.NotifyUpsert(models.KindEntity, e.ID)
	return e, nil
}

func (s *EntityService) UpdateEntity(ctx context.Context, id string, in EntityInput) (*models.Entity, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	payload, err := normalizePayload(in.Payload)
	if err != nil {
		return nil, err
	}
	if err := validatePriority(in.Priority); err != nil {
		return nil, err
	}

	e, err := s.deps.Entities.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update entity %s: %w", id, err)
	}
	e.Payload = payload
	if in.Priority != 0 {
		e.SyncPriority = in.Priority
	}
	e.UpdatedAt = s.stamp()

	if err := s.deps.Entities.CreateOrUpdate(ctx, e); err != nil {
		return nil, fmt.Errorf("update entity %s: %w", id, err)
	}

	s.deps.Sync.NotifyUpsert(models.KindEntity, e.ID)
	return e, nil
}

// DeleteEntity removes the entity and its attachments locally in one
// transaction and queues the remote deletes. Attachment files are removed
// after the commit.
func (s *EntityService) DeleteEntity(ctx context.Context, id string) error {
	if err := requireID("id", id); err != nil {
		return err
	}

	now := s.stamp()
	var removed []models.Attachment
	err := dbx.WithTx(ctx, s.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		atts, err := attachments.NewSQLiteRepository(tx).DeleteByOwner(ctx, id)
		if err != nil {
			return err
		}
		if err := entities.NewSQLiteRepository(tx).Delete(ctx, id); err != nil {
			return err
		}

		outbox := deletes.NewSQLiteRepository(tx)
		if err := outbox.Enqueue(ctx, models.KindEntity, id, now); err != nil {
			return err
		}
		for _, a := range atts {
			if err := outbox.Enqueue(ctx, models.KindAttachment, a.ID, now); err != nil {
				return err
			}
		}
		removed = atts
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete entity %s: %w", id, err)
	}

	for _, a := range removed {
		s.removeFile(ctx, a)
		s.deps.Sync.NotifyDelete(models.KindAttachment, a.ID)
	}
	s.deps.Sync.NotifyDelete(models.KindEntity, id)
	return nil
}

func (s *EntityService) removeFile(ctx context.Context, a models.Attachment) {
	if err := s.deps.Files.Remove(a.StorageName); err != nil {
		s.logger.Warn(ctx, "failed to remove attachment file", "attachment", a.ID, "error", err)
	}
}

func (s *EntityService) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return s.deps.Entities.GetByID(ctx, id)
}

func (s *EntityService) ListEntities(ctx context.Context) ([]models.Entity, error) {
	return s.deps.Entities.List(ctx)
}

func (s *EntityService) SearchEntities(ctx context.Context, query string) ([]models.Entity, error) {
	return s.deps.Entities.Search(ctx, query)
}

// ForceSync runs a sweep now. Replication failures are not returned; they
// show up in the returned status.
func (s *EntityService) ForceSync(ctx context.Context) Status {
	if err := s.deps.Sync.ForceSync(ctx); err != nil {
		s.logger.Info(ctx, "forced sync did not complete", "error", err)
	}
	return s.GetStatus(ctx)
}
