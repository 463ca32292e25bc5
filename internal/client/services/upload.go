package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophsync/internal/client/repositories/attachments"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/deletes"
	"github.com/dmitrijs2005/gophsync/internal/client/transfer"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/models"
)

// UploadOptions ties a new attachment to an entity. Both fields are optional.
type UploadOptions struct {
	OwnerID  string
	Priority models.Priority
}

func (s *EntityService) checkUpload(ctx context.Context, opts UploadOptions) error {
	if err := validatePriority(opts.Priority); err != nil {
		return err
	}
	if opts.OwnerID == "" {
		return nil
	}
	if _, err := s.deps.Entities.GetByID(ctx, opts.OwnerID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.Invalid("ownerId", "entity %s does not exist", opts.OwnerID)
		}
		return err
	}
	return nil
}

// register stores the metadata row of freshly written bytes. If the row
// cannot be written the bytes are removed again.
func (s *EntityService) register(ctx context.Context, att models.Attachment, opts UploadOptions) (*models.Attachment, error) {
	att.OwnerEntityID = opts.OwnerID
	att.SyncPriority = opts.Priority.OrDefault()

	if err := s.deps.Attachments.CreateOrUpdate(ctx, &att); err != nil {
		s.removeFile(ctx, att)
		return nil, fmt.Errorf("save attachment: %w", err)
	}

	s.deps.Sync.NotifyUpsert(models.KindAttachment, att.ID)
	return &att, nil
}

func (s *EntityService) UploadBuffered(ctx context.Context, data []byte, name, contentType string, opts UploadOptions) (*models.Attachment, error) {
	if err := s.checkUpload(ctx, opts); err != nil {
		return nil, err
	}
	att, err := s.deps.Files.Save(ctx, data, name, contentType)
	if err != nil {
		return nil, err
	}
	return s.register(ctx, att, opts)
}

func (s *EntityService) UploadStreamed(ctx context.Context, path, name, contentType string, opts UploadOptions, onProgress transfer.ProgressFunc) (*models.Attachment, error) {
	if err := s.checkUpload(ctx, opts); err != nil {
		return nil, err
	}
	att, err := s.deps.Files.SaveStreaming(ctx, path, name, contentType, onProgress)
	if err != nil {
		return nil, err
	}
	return s.register(ctx, att, opts)
}

// transient reports whether a failed STREAMED transfer may be retried as
// BUFFERED. Cancellation, validation and integrity errors are final.
func transient(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, transfer.ErrCancelled):
		return false
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrIntegrityFailure):
		return false
	}
	return errors.Is(err, common.ErrIO)
}

// UploadFile picks the transfer strategy from the file size. A STREAMED
// transfer that fails transiently is retried once as BUFFERED.
func (s *EntityService) UploadFile(ctx context.Context, path, contentType string, opts UploadOptions, onProgress transfer.ProgressFunc) (*models.Attachment, error) {
	if err := requireID("path", path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, common.IOError("stat upload source", err)
	}
	if info.IsDir() {
		return nil, common.Invalid("path", "%s is a directory", path)
	}
	if err := s.checkUpload(ctx, opts); err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	cfg := s.deps.Files.Config()

	switch cfg.Strategy(info.Size()) {
	case transfer.KindBuffered:
		return s.uploadWhole(ctx, path, name, contentType, opts)

	case transfer.KindStreamed:
		att, err := s.deps.Files.SaveStreaming(ctx, path, name, contentType, onProgress)
		if err == nil {
			return s.register(ctx, att, opts)
		}
		if !transient(err) {
			return nil, err
		}
		s.logger.Warn(ctx, "streamed upload failed, retrying buffered", "path", path, "error", err)
		return s.uploadWhole(ctx, path, name, contentType, opts)

	default:
		return s.uploadChunked(ctx, path, name, contentType, info.Size(), cfg.PieceSize, opts, onProgress)
	}
}

func (s *EntityService) uploadWhole(ctx context.Context, path, name, contentType string, opts UploadOptions) (*models.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.IOError("read upload source", err)
	}
	att, err := s.deps.Files.Save(ctx, data, name, contentType)
	if err != nil {
		return nil, err
	}
	return s.register(ctx, att, opts)
}

func (s *EntityService) uploadChunked(ctx context.Context, path, name, contentType string, size int64, pieceSize int, opts UploadOptions, onProgress transfer.ProgressFunc) (att *models.Attachment, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.IOError("open upload source", err)
	}
	defer f.Close()

	id, err := s.deps.Files.Initialize(name, size, contentType)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_, _ = s.deps.Files.Cancel(id)
		}
	}()

	buf := make([]byte, pieceSize)
	for index := 0; ; index++ {
		n, rerr := io.ReadFull(f, buf)
		if n > 0 {
			p, aerr := s.deps.Files.AppendChunk(ctx, id, buf[:n], index)
			if aerr != nil {
				return nil, aerr
			}
			if onProgress != nil {
				onProgress(p)
			}
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return nil, common.IOError("read upload source", rerr)
		}
	}

	return s.FinalizeChunked(ctx, id, opts)
}

func (s *EntityService) InitChunked(name string, totalSize int64, contentType string) (string, error) {
	return s.deps.Files.Initialize(name, totalSize, contentType)
}

func (s *EntityService) AppendChunk(ctx context.Context, sessionID string, data []byte, index int) (transfer.Progress, error) {
	if err := requireID("sessionId", sessionID); err != nil {
		return transfer.Progress{}, err
	}
	return s.deps.Files.AppendChunk(ctx, sessionID, data, index)
}

// FinalizeChunked checks the owner before touching the session, so a bad
// owner leaves the session open for a corrected call.
func (s *EntityService) FinalizeChunked(ctx context.Context, sessionID string, opts UploadOptions) (*models.Attachment, error) {
	if err := requireID("sessionId", sessionID); err != nil {
		return nil, err
	}
	if err := s.checkUpload(ctx, opts); err != nil {
		return nil, err
	}
	att, err := s.deps.Files.Finalize(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.register(ctx, att, opts)
}

func (s *EntityService) CancelTransfer(sessionID string) (bool, error) {
	return s.deps.Files.Cancel(sessionID)
}

func (s *EntityService) TransferProgress(sessionID string) (transfer.Progress, error) {
	return s.deps.Files.Progress(sessionID)
}

// ListAttachments lists the attachments of ownerID, or all of them when
// ownerID is empty.
func (s *EntityService) ListAttachments(ctx context.Context, ownerID string) ([]models.Attachment, error) {
	if ownerID == "" {
		return s.deps.Attachments.List(ctx)
	}
	return s.deps.Attachments.ListByOwner(ctx, ownerID)
}

func (s *EntityService) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return s.deps.Attachments.GetByID(ctx, id)
}

func (s *EntityService) DeleteAttachment(ctx context.Context, id string) error {
	if err := requireID("id", id); err != nil {
		return err
	}

	var att *models.Attachment
	err := dbx.WithTx(ctx, s.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := attachments.NewSQLiteRepository(tx)
		a, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		att = a
		return deletes.NewSQLiteRepository(tx).Enqueue(ctx, models.KindAttachment, id, s.stamp())
	})
	if err != nil {
		return fmt.Errorf("delete attachment %s: %w", id, err)
	}

	s.removeFile(ctx, *att)
	s.deps.Sync.NotifyDelete(models.KindAttachment, id)
	return nil
}
