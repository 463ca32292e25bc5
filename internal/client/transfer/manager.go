// Package transfer moves attachment bytes into the uploads directory with
// one of three strategies chosen by size: BUFFERED (whole buffer in memory),
// STREAMED (fixed-size pieces from a source file) and CHUNKED (a multi-call
// session appending to a temp file). Memory use of the last two is bounded
// by the piece size.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/filex"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/google/uuid"
)

const (
	partSuffix  = ".part"
	chunkSuffix = ".chunk"
)

// ErrCancelled is returned by a transfer that was cancelled mid-flight.
var ErrCancelled = errors.New("transfer cancelled")

// ProgressFunc receives progress events. It is called synchronously from
// the transferring goroutine and must not block.
type ProgressFunc func(Progress)

type Manager struct {
	cfg      Config
	logger   logging.Logger
	sessions *registry
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)
	newID    func() string
}

// New creates the uploads and temp directories if missing.
func New(cfg Config, logger logging.Logger) (*Manager, error) {
	cfg = cfg.withDefaults()
	if cfg.UploadsDir == "" || cfg.TempDir == "" {
		return nil, common.Invalid("transfer", "uploads and temp directories are required")
	}
	for _, dir := range []string{cfg.UploadsDir, cfg.TempDir} {
		if err := os.MkdirAll(dir, 0o770); err != nil {
			return nil, common.IOError("create transfer dir", err)
		}
	}
	cfg.UploadsDir = filepath.Clean(cfg.UploadsDir)
	cfg.TempDir = filepath.Clean(cfg.TempDir)

	return &Manager{
		cfg:      cfg,
		logger:   logger.With("module", "transfer"),
		sessions: newRegistry(),
		now:      time.Now,
		sleep:    sleepCtx,
		newID:    uuid.NewString,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (m *Manager) Config() Config { return m.cfg }

func (m *Manager) uploadPath(storageName string) string {
	return filepath.Join(m.cfg.UploadsDir, storageName)
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(filepath.Base(filepath.Clean(name)))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "", common.Invalid("name", "must not be empty")
	}
	return name, nil
}

func defaultContentType(ct string) string {
	if strings.TrimSpace(ct) == "" {
		return "application/octet-stream"
	}
	return ct
}

func (m *Manager) record(name, contentType, storage string, size int64, hash string) models.Attachment {
	now := m.now().UTC()
	return models.Attachment{
		ID:            m.newID(),
		OriginalName:  name,
		StorageName:   storage,
		SizeBytes:     size,
		ContentType:   contentType,
		IntegrityHash: hash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (m *Manager) newSession(kind Kind, name, contentType string, total int64) *session {
	now := m.now()
	s := &session{
		id:           m.newID(),
		kind:         kind,
		originalName: name,
		contentType:  contentType,
		total:        total,
		status:       StatusInitialized,
		digest:       xxhash.New(),
		updatedAt:    now,
	}
	m.sessions.put(s)
	return s
}

// Save writes data in one go: hash the buffer, write "<storage>.part",
// fsync, rename. The part file is removed on any error.
func (m *Manager) Save(ctx context.Context, data []byte, name, contentType string) (models.Attachment, error) {
	name, err := cleanName(name)
	if err != nil {
		return models.Attachment{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Attachment{}, err
	}
	contentType = defaultContentType(contentType)

	s := m.newSession(KindBuffered, name, contentType, int64(len(data)))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusInProgress

	storage := m.newID()
	part := m.uploadPath(storage) + partSuffix

	if err := filex.WriteFileSync(part, data); err != nil {
		_ = filex.RemoveIfExists(part)
		s.finish(StatusFailed, m.now())
		return models.Attachment{}, common.IOError("write buffered upload", err)
	}
	if err := filex.Commit(part, m.uploadPath(storage)); err != nil {
		_ = filex.RemoveIfExists(part)
		s.finish(StatusFailed, m.now())
		return models.Attachment{}, common.IOError("commit buffered upload", err)
	}

	s.transferred = int64(len(data))
	s.finish(StatusCompleted, m.now())
	return m.record(name, contentType, storage, int64(len(data)), HashBytes(data)), nil
}

// SaveStreaming copies sourcePath into the uploads directory piece by piece.
// Between pieces it checks ctx and session cancellation. The first progress
// event carries the session ID so callers can cancel.
func (m *Manager) SaveStreaming(ctx context.Context, sourcePath, name, contentType string, onProgress ProgressFunc) (att models.Attachment, err error) {
	if name == "" {
		name = filepath.Base(sourcePath)
	}
	name, err = cleanName(name)
	if err != nil {
		return att, err
	}
	contentType = defaultContentType(contentType)

	src, err := os.Open(sourcePath)
	if err != nil {
		return att, common.IOError("open source", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return att, common.IOError("stat source", err)
	}

	s := m.newSession(KindStreamed, name, contentType, info.Size())
	emit := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	storage := m.newID()
	part := m.uploadPath(storage) + partSuffix
	dst, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		m.failSession(s)
		return att, common.IOError("create part file", err)
	}

	defer func() {
		if err == nil {
			return
		}
		_ = dst.Close()
		_ = filex.RemoveIfExists(part)
		if errors.Is(err, ErrCancelled) {
			return
		}
		m.failSession(s)
	}()

	s.mu.Lock()
	s.status = StatusInProgress
	first := s.progress()
	s.mu.Unlock()
	emit(first)

	buf := make([]byte, m.cfg.PieceSize)
	digest := xxhash.New()
	lastEmit := m.now()

	for {
		if err = ctx.Err(); err != nil {
			return att, err
		}
		if m.cancelled(s) {
			return att, ErrCancelled
		}

		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if _, err = dst.Write(buf[:n]); err != nil {
				return att, common.IOError("write piece", err)
			}
			_, _ = digest.Write(buf[:n])

			s.mu.Lock()
			s.transferred += int64(n)
			s.updatedAt = m.now()
			p := s.progress()
			s.mu.Unlock()

			if now := m.now(); now.Sub(lastEmit) >= m.cfg.ProgressInterval {
				lastEmit = now
				emit(p)
			}
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			err = common.IOError("read piece", rerr)
			return att, err
		}
	}

	s.mu.Lock()
	copied, declared := s.transferred, s.total
	s.mu.Unlock()
	if copied != declared {
		// the source changed size while it was being copied
		err = fmt.Errorf("streamed %d of %d bytes: %w", copied, declared, common.ErrSizeMismatch)
		return att, err
	}

	if err = dst.Sync(); err != nil {
		return att, common.IOError("sync part file", err)
	}
	if err = dst.Close(); err != nil {
		return att, common.IOError("close part file", err)
	}
	if err = filex.Commit(part, m.uploadPath(storage)); err != nil {
		return att, common.IOError("commit streamed upload", err)
	}

	s.mu.Lock()
	s.finish(StatusCompleted, m.now())
	size := s.transferred
	final := s.progress()
	s.mu.Unlock()
	emit(final)

	return m.record(name, contentType, storage, size, formatDigest(digest.Sum64())), nil
}

func (m *Manager) cancelled(s *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusCancelled
}

func (m *Manager) failSession(s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Terminal() {
		s.finish(StatusFailed, m.now())
	}
}

// Initialize opens a CHUNKED session with an empty temp file.
func (m *Manager) Initialize(name string, totalSize int64, contentType string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if totalSize < 0 {
		return "", common.Invalid("totalSize", "must not be negative")
	}

	s := m.newSession(KindChunked, name, defaultContentType(contentType), totalSize)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tempPath = filepath.Join(m.cfg.TempDir, s.id+chunkSuffix)
	f, err := os.OpenFile(s.tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		m.sessions.drop(s.id)
		return "", common.IOError("create temp file", err)
	}
	if err := f.Close(); err != nil {
		_ = filex.RemoveIfExists(s.tempPath)
		m.sessions.drop(s.id)
		return "", common.IOError("create temp file", err)
	}
	return s.id, nil
}

func (m *Manager) chunked(id string) (*session, error) {
	s, ok := m.sessions.get(id)
	if !ok || s.kind != KindChunked {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrSessionNotFound)
	}
	return s, nil
}

// AppendChunk appends data to the session temp file. The file is opened in
// append mode on every call so no descriptor is held between calls.
func (m *Manager) AppendChunk(ctx context.Context, id string, data []byte, index int) (Progress, error) {
	if err := ctx.Err(); err != nil {
		return Progress{}, err
	}
	if index < 0 {
		return Progress{}, common.Invalid("index", "must not be negative")
	}
	s, err := m.chunked(id)
	if err != nil {
		return Progress{}, err
	}

	s.mu.Lock()
	p, yield, err := m.appendLocked(s, data, index)
	s.mu.Unlock()
	if err != nil {
		return Progress{}, err
	}

	if yield {
		m.sleep(ctx, m.cfg.YieldPause)
	}
	return p, nil
}

func (m *Manager) appendLocked(s *session, data []byte, index int) (Progress, bool, error) {
	if s.status.Terminal() {
		return Progress{}, false, fmt.Errorf("session %s is %s: %w", s.id, s.status, common.ErrSessionTerminal)
	}
	if m.cfg.StrictChunkOrder && index != s.nextIndex {
		return Progress{}, false, fmt.Errorf("session %s: got chunk %d, want %d: %w", s.id, index, s.nextIndex, common.ErrChunkOrder)
	}

	f, err := os.OpenFile(s.tempPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.finish(StatusFailed, m.now())
		}
		return Progress{}, false, common.IOError("open temp file", err)
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		return Progress{}, false, common.IOError("append chunk", errors.Join(werr, cerr))
	}

	_, _ = s.digest.Write(data)
	s.transferred += int64(len(data))
	if index+1 > s.nextIndex {
		s.nextIndex = index + 1
	}
	s.chunks++
	s.status = StatusInProgress
	s.updatedAt = m.now()

	yield := m.cfg.YieldEvery > 0 && s.chunks%m.cfg.YieldEvery == 0
	return s.progress(), yield, nil
}

// Finalize verifies the session and moves the temp file into uploads.
// A size mismatch leaves the session untouched so the caller can append
// the missing bytes. A hash mismatch deletes the temp file and fails the
// session.
func (m *Manager) Finalize(ctx context.Context, id string) (models.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return models.Attachment{}, err
	}
	s, err := m.chunked(id)
	if err != nil {
		return models.Attachment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return models.Attachment{}, fmt.Errorf("session %s is %s: %w", s.id, s.status, common.ErrSessionTerminal)
	}
	if s.transferred != s.total {
		return models.Attachment{}, fmt.Errorf("session %s: got %d bytes, declared %d: %w",
			s.id, s.transferred, s.total, common.ErrSizeMismatch)
	}

	if err := syncFile(s.tempPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.finish(StatusFailed, m.now())
		}
		return models.Attachment{}, common.IOError("sync temp file", err)
	}

	rolling := formatDigest(s.digest.Sum64())
	onDisk, err := HashFile(s.tempPath)
	if err != nil {
		return models.Attachment{}, common.IOError("hash temp file", err)
	}
	if onDisk != rolling {
		_ = filex.RemoveIfExists(s.tempPath)
		s.finish(StatusFailed, m.now())
		return models.Attachment{}, fmt.Errorf("session %s: file hash %s, expected %s: %w",
			s.id, onDisk, rolling, common.ErrIntegrityFailure)
	}

	storage := m.newID()
	if err := filex.Commit(s.tempPath, m.uploadPath(storage)); err != nil {
		return models.Attachment{}, common.IOError("commit chunked upload", err)
	}
	s.finish(StatusCompleted, m.now())

	return m.record(s.originalName, s.contentType, storage, s.total, rolling), nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Cancel stops a non-terminal session and deletes its temp file right away.
// Cancelling an already cancelled session reports false without error.
func (m *Manager) Cancel(id string) (bool, error) {
	s, ok := m.sessions.get(id)
	if !ok {
		return false, fmt.Errorf("session %s: %w", id, common.ErrSessionNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusCancelled:
		return false, nil
	case StatusCompleted, StatusFailed:
		return false, fmt.Errorf("session %s is %s: %w", s.id, s.status, common.ErrSessionTerminal)
	}

	if s.tempPath != "" {
		if err := filex.RemoveIfExists(s.tempPath); err != nil {
			m.logger.Warn(context.Background(), "failed to remove temp file", "session", s.id, "error", err)
		}
	}
	s.finish(StatusCancelled, m.now())
	return true, nil
}

func (m *Manager) Progress(id string) (Progress, error) {
	s, ok := m.sessions.get(id)
	if !ok {
		return Progress{}, fmt.Errorf("session %s: %w", id, common.ErrSessionNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress(), nil
}

// Sweep forgets sessions that finished more than SessionTTL before now and
// fails CHUNKED sessions idle for longer than IdleTimeout. It returns how
// many sessions were dropped.
func (m *Manager) Sweep(now time.Time) int {
	dropped := 0
	for _, s := range m.sessions.all() {
		s.mu.Lock()
		switch {
		case s.status.Terminal():
			if now.Sub(s.finishedAt) >= m.cfg.SessionTTL {
				m.sessions.drop(s.id)
				dropped++
			}
		case s.kind == KindChunked && now.Sub(s.updatedAt) >= m.cfg.IdleTimeout:
			_ = filex.RemoveIfExists(s.tempPath)
			s.finish(StatusFailed, now)
			m.logger.Info(context.Background(), "idle chunked session failed", "session", s.id)
		}
		s.mu.Unlock()
	}
	return dropped
}

// Len reports how many sessions the registry holds.
func (m *Manager) Len() int { return m.sessions.len() }

// StartupSweep empties the temp directory and removes stray part files
// left in uploads by an interrupted process. Sessions never survive a
// restart, so anything found there is an orphan.
func (m *Manager) StartupSweep() (int, error) {
	n1, err1 := filex.Sweep(m.cfg.TempDir, nil)
	n2, err2 := filex.Sweep(m.cfg.UploadsDir, func(name string) bool {
		return strings.HasSuffix(name, partSuffix)
	})
	if err := errors.Join(err1, err2); err != nil {
		return n1 + n2, common.IOError("startup sweep", err)
	}
	return n1 + n2, nil
}

func validStorageName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

// Open returns the stored bytes of an attachment.
func (m *Manager) Open(storageName string) (io.ReadCloser, error) {
	if !validStorageName(storageName) {
		return nil, common.Invalid("storageName", "invalid %q", storageName)
	}
	f, err := os.Open(m.uploadPath(storageName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", storageName, common.ErrNotFound)
	}
	if err != nil {
		return nil, common.IOError("open blob", err)
	}
	return f, nil
}

// Remove deletes stored bytes; a missing file is not an error.
func (m *Manager) Remove(storageName string) error {
	if !validStorageName(storageName) {
		return common.Invalid("storageName", "invalid %q", storageName)
	}
	if err := filex.RemoveIfExists(m.uploadPath(storageName)); err != nil {
		return common.IOError("remove blob", err)
	}
	return nil
}

// Run sweeps the registry periodically until ctx is done.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = m.cfg.SessionTTL / 2
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep(m.now())
		}
	}
}
