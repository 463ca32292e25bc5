// Package services implements the replica server's business logic: last
// write wins persistence of replicated records and blob bookkeeping.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/mapping"
	"github.com/dmitrijs2005/gophsync/internal/server/models"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/repomanager"
)

type ReplicaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       BlobStore
	logger      logging.Logger
	now         func() time.Time
}

func NewReplicaService(db *sql.DB, rm repomanager.RepositoryManager, blobs BlobStore, logger logging.Logger) *ReplicaService {
	return &ReplicaService{
		db:          db,
		repomanager: rm,
		blobs:       blobs,
		logger:      logger.With("module", "replica"),
		now:         time.Now,
	}
}

// UpsertEntity stores rec unless the replica holds a newer version, in which
// case common.ErrConflict is returned.
func (s *ReplicaService) UpsertEntity(ctx context.Context, deviceID string, rec mapping.RemoteRecord) error {
	e, err := mapping.FromRemoteFormat(rec)
	if err != nil {
		return common.Invalid("record", "%v", err)
	}
	if e.UpdatedAt.IsZero() {
		return common.Invalid("updated_at", "is required")
	}

	attrs := []byte("{}")
	if len(e.Attributes) > 0 {
		if attrs, err = json.Marshal(e.Attributes); err != nil {
			return common.Invalid("attributes", "%v", err)
		}
	}

	return s.repomanager.Entities(s.db).Upsert(ctx, &models.Entity{
		ID:         e.ID,
		Title:      e.Title,
		Body:       e.Body,
		Tags:       e.Tags,
		Pinned:     e.Pinned,
		Attributes: attrs,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
		DeviceID:   deviceID,
	})
}

// DeleteEntity removes the entity together with its attachments. Deleting an
// unknown id succeeds.
func (s *ReplicaService) DeleteEntity(ctx context.Context, id string) error {
	if id == "" {
		return common.Invalid("id", "is required")
	}

	var keys []string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if keys, err = s.repomanager.Attachments(tx).DeleteByOwner(ctx, id); err != nil {
			return err
		}
		_, err = s.repomanager.Entities(tx).Delete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}

	for _, k := range keys {
		s.deleteBlob(ctx, k)
	}
	return nil
}

// UpsertAttachment stores the metadata and returns a presigned PUT URL for
// the blob, or "" when the stored blob already matches.
func (s *ReplicaService) UpsertAttachment(ctx context.Context, deviceID string, rec mapping.RemoteRecord) (string, error) {
	a, err := mapping.AttachmentFromRemote(rec)
	if err != nil {
		return "", common.Invalid("record", "%v", err)
	}
	if a.UpdatedAt.IsZero() {
		return "", common.Invalid("updated_at", "is required")
	}
	if a.SizeBytes < 0 {
		return "", common.Invalid("size_bytes", "must not be negative")
	}

	repo := s.repomanager.Attachments(s.db)

	existing, err := repo.GetByID(ctx, a.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return "", err
	}

	key := newStorageKey(s.now().UTC())
	if existing != nil {
		key = existing.StorageKey
	}

	err = repo.Upsert(ctx, &models.Attachment{
		ID:            a.ID,
		OwnerEntityID: a.OwnerEntityID,
		OriginalName:  a.OriginalName,
		SizeBytes:     a.SizeBytes,
		ContentType:   a.ContentType,
		IntegrityHash: a.IntegrityHash,
		StorageKey:    key,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		DeviceID:      deviceID,
	})
	if err != nil {
		return "", err
	}

	if existing != nil && existing.IntegrityHash == a.IntegrityHash {
		stored, err := s.blobs.Exists(ctx, key)
		if err != nil {
			return "", err
		}
		if stored {
			return "", nil
		}
	}

	return s.blobs.PresignPut(ctx, key)
}

// DeleteAttachment removes the metadata and the blob. Deleting an unknown id
// succeeds.
func (s *ReplicaService) DeleteAttachment(ctx context.Context, id string) error {
	if id == "" {
		return common.Invalid("id", "is required")
	}
	key, err := s.repomanager.Attachments(s.db).Delete(ctx, id)
	if err != nil {
		return err
	}
	if key != "" {
		s.deleteBlob(ctx, key)
	}
	return nil
}

// Ping checks the database.
func (s *ReplicaService) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// deleteBlob logs failures and never returns them.
func (s *ReplicaService) deleteBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn(ctx, "blob delete failed", "key", key, "error", err)
	}
}
