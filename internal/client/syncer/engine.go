package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/remote"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/attachments"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/deletes"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/mapping"
	"github.com/dmitrijs2005/gophsync/internal/models"
)

const (
	DefaultBatchSize      = 8
	MinBatchSize          = 5
	MaxBatchSize          = 10
	DefaultRemoteTimeout  = 10 * time.Second
	DefaultStatusInterval = 5 * time.Second
	DefaultRetryBase      = 2 * time.Second
	DefaultMaxRetries     = 5

	retryTaskName = "sync"
)

// ErrSweepInProgress is returned when a sweep is requested while one runs.
var ErrSweepInProgress = errors.New("sweep already in progress")

type Config struct {
	BatchSize      int
	RemoteTimeout  time.Duration
	StatusInterval time.Duration
	RetryBase      time.Duration
	MaxRetries     int
}

// ClampBatchSize maps n into [MinBatchSize, MaxBatchSize]; zero selects the
// default.
func ClampBatchSize(n int) int {
	switch {
	case n == 0:
		return DefaultBatchSize
	case n < MinBatchSize:
		return MinBatchSize
	case n > MaxBatchSize:
		return MaxBatchSize
	default:
		return n
	}
}

func (c Config) withDefaults() Config {
	c.BatchSize = ClampBatchSize(c.BatchSize)
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = DefaultRemoteTimeout
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = DefaultStatusInterval
	}
	if c.RetryBase <= 0 {
		c.RetryBase = DefaultRetryBase
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

type Prober interface {
	IsReachable(ctx context.Context) bool
}

// BlobSource opens stored attachment bytes by storage name.
type BlobSource interface {
	Open(storageName string) (io.ReadCloser, error)
}

type Deps struct {
	Prober      Prober
	Replica     remote.Replica // nil disables replication
	Entities    entities.Repository
	Attachments attachments.Repository
	Deletes     deletes.Repository
	Metadata    metadata.Repository
	Blobs       BlobSource
	Now         func() time.Time
}

type Engine struct {
	cfg    Config
	deps   Deps
	logger logging.Logger
	now    func() time.Time
	queue  *Queue

	online   atomic.Bool
	busy     atomic.Int32
	sweeping atomic.Bool
	wg       sync.WaitGroup

	mu         sync.Mutex
	attempt    int
	lastErr    string
	lastSyncAt time.Time
}

func New(cfg Config, deps Deps, logger logging.Logger) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		logger: logger.With("module", "syncer"),
		now:    now,
		queue:  NewQueue(),
	}
}

func (e *Engine) State() State {
	switch {
	case !e.online.Load():
		return StateOffline
	case e.busy.Load() > 0:
		return StateOnlineSyncing
	default:
		return StateOnlineIdle
	}
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:         e.State(),
		LastError:     e.lastErr,
		LastSyncAt:    e.lastSyncAt,
		RetryAttempt:  e.attempt,
		QueuedRetries: e.queue.Pending(),
		SweepInFlight: e.sweeping.Load(),
		RemoteEnabled: e.deps.Replica != nil,
	}
}

// Queue exposes the retry queue for inspection.
func (e *Engine) Queue() *Queue { return e.queue }

// Connect probes the remote host and authenticates. On success the engine is
// online, the retry counter is reset and queued retries are dropped.
func (e *Engine) Connect(ctx context.Context) bool {
	return e.connect(ctx, true)
}

func (e *Engine) connect(ctx context.Context, reset bool) bool {
	if e.deps.Replica == nil {
		return false
	}
	if !e.deps.Prober.IsReachable(ctx) {
		e.goOffline(ctx, common.ErrRemoteUnavailable)
		return false
	}

	actx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	defer cancel()
	if err := e.deps.Replica.Authenticate(actx); err != nil {
		e.goOffline(ctx, err)
		return false
	}

	if e.online.CompareAndSwap(false, true) {
		e.logger.Info(ctx, "replica online")
	}
	if reset {
		e.mu.Lock()
		e.attempt = 0
		e.lastErr = ""
		e.mu.Unlock()
		e.queue.Cancel(retryTaskName)
	}
	return true
}

func (e *Engine) goOffline(ctx context.Context, cause error) {
	e.mu.Lock()
	if cause != nil {
		e.lastErr = cause.Error()
	}
	e.mu.Unlock()
	if e.online.CompareAndSwap(true, false) {
		e.logger.Warn(ctx, "replica offline", "error", cause)
	}
}

// scheduleRetry queues the next attempt of a whole sync, base × 2^attempt
// from now, unless MaxRetries attempts were already made.
func (e *Engine) scheduleRetry(ctx context.Context) {
	e.mu.Lock()
	attempt := e.attempt
	if attempt >= e.cfg.MaxRetries {
		e.mu.Unlock()
		e.logger.Warn(ctx, "sync retries exhausted, waiting for next probe", "attempts", attempt)
		return
	}
	e.attempt++
	e.mu.Unlock()

	delay := Backoff(e.cfg.RetryBase, attempt)
	e.queue.Schedule(Task{Name: retryTaskName, Attempt: attempt, NotBefore: e.now().Add(delay)})
	e.logger.Info(ctx, "sync retry scheduled", "attempt", attempt, "delay", delay.String())
}

// NotifyUpsert replicates one record in the background after a local write.
func (e *Engine) NotifyUpsert(kind models.RecordKind, id string) {
	e.notify(func(ctx context.Context) error { return e.SyncOne(ctx, kind, id) })
}

// NotifyDelete replays one outbox entry in the background.
func (e *Engine) NotifyDelete(kind models.RecordKind, id string) {
	e.notify(func(ctx context.Context) error { return e.DeleteOne(ctx, kind, id) })
}

func (e *Engine) notify(fn func(ctx context.Context) error) {
	if e.deps.Replica == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx := context.Background()
		if err := fn(ctx); err != nil && !errors.Is(err, common.ErrRemoteUnavailable) {
			e.logger.Debug(ctx, "opportunistic sync skipped", "error", err)
		}
	}()
}

// Wait blocks until background notifications finish.
func (e *Engine) Wait() { e.wg.Wait() }

// begin reserves an online slot for a replication call. It probes first; an
// unreachable host flips the engine offline.
func (e *Engine) begin(ctx context.Context) error {
	if e.deps.Replica == nil {
		return common.ErrRemoteUnavailable
	}
	if !e.deps.Prober.IsReachable(ctx) {
		e.goOffline(ctx, common.ErrRemoteUnavailable)
		return common.ErrRemoteUnavailable
	}
	if !e.online.Load() {
		return common.ErrRemoteUnavailable
	}
	e.busy.Add(1)
	return nil
}

// SyncOne replicates a single record now. A failure leaves the record
// UNSYNCED and flips the engine offline without scheduling a retry.
func (e *Engine) SyncOne(ctx context.Context, kind models.RecordKind, id string) error {
	if err := e.begin(ctx); err != nil {
		return err
	}
	defer e.busy.Add(-1)

	var err error
	switch kind {
	case models.KindEntity:
		var ent *models.Entity
		ent, err = e.deps.Entities.GetByID(ctx, id)
		if err == nil {
			_, err = e.replicateEntity(ctx, *ent)
		}
	case models.KindAttachment:
		var att *models.Attachment
		att, err = e.deps.Attachments.GetByID(ctx, id)
		if err == nil {
			_, err = e.replicateAttachment(ctx, *att)
		}
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}

	if errors.Is(err, common.ErrNotFound) {
		// deleted before we got to it
		return nil
	}
	if err != nil {
		e.goOffline(ctx, err)
		return err
	}
	return nil
}

// DeleteOne replays the outbox entry for (kind, id).
func (e *Engine) DeleteOne(ctx context.Context, kind models.RecordKind, id string) error {
	if err := e.begin(ctx); err != nil {
		return err
	}
	defer e.busy.Add(-1)

	if err := e.replayDelete(ctx, models.PendingDelete{Kind: kind, ID: id}); err != nil {
		e.goOffline(ctx, err)
		return err
	}
	return nil
}

func (e *Engine) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	defer cancel()
	return fn(ctx)
}

// replicateEntity upserts ent and acknowledges the replicated revision. It
// reports whether the local row was flagged SYNCED.
func (e *Engine) replicateEntity(ctx context.Context, ent models.Entity) (bool, error) {
	if ent.SyncState == models.SyncStateSynced {
		return false, nil
	}
	err := e.call(ctx, func(ctx context.Context) error {
		return e.deps.Replica.UpsertEntity(ctx, mapping.ToRemoteFormat(ent))
	})
	if errors.Is(err, common.ErrConflict) {
		e.logger.Info(ctx, "remote holds a newer entity, keeping it", "id", ent.ID)
	} else if err != nil {
		return false, fmt.Errorf("upsert entity %s: %w", ent.ID, err)
	}
	return e.deps.Entities.MarkSynced(ctx, ent.ID, ent.Revision)
}

func (e *Engine) replicateAttachment(ctx context.Context, att models.Attachment) (bool, error) {
	if att.SyncState == models.SyncStateSynced {
		return false, nil
	}
	open := func() (io.ReadCloser, error) {
		if e.deps.Blobs == nil {
			return nil, fmt.Errorf("no blob source for %s", att.ID)
		}
		return e.deps.Blobs.Open(att.StorageName)
	}
	err := e.call(ctx, func(ctx context.Context) error {
		return e.deps.Replica.UpsertAttachment(ctx, mapping.AttachmentToRemote(att), open)
	})
	if errors.Is(err, common.ErrConflict) {
		e.logger.Info(ctx, "remote holds a newer attachment, keeping it", "id", att.ID)
	} else if err != nil {
		return false, fmt.Errorf("upsert attachment %s: %w", att.ID, err)
	}
	return e.deps.Attachments.MarkSynced(ctx, att.ID, att.Revision)
}

func (e *Engine) replayDelete(ctx context.Context, d models.PendingDelete) error {
	err := e.call(ctx, func(ctx context.Context) error {
		switch d.Kind {
		case models.KindEntity:
			return e.deps.Replica.DeleteEntity(ctx, d.ID)
		case models.KindAttachment:
			return e.deps.Replica.DeleteAttachment(ctx, d.ID)
		default:
			return fmt.Errorf("unknown record kind %q", d.Kind)
		}
	})
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("delete %s %s: %w", d.Kind, d.ID, err)
	}
	return e.deps.Deletes.Remove(ctx, d.Kind, d.ID)
}

// Sweep replicates every pending change: the delete outbox first, then
// entities and attachments tier by tier, HIGH to LOW. The first failure
// aborts the sweep, flips the engine offline and schedules a retry.
func (e *Engine) Sweep(ctx context.Context) error {
	if e.deps.Replica == nil || !e.online.Load() {
		return common.ErrRemoteUnavailable
	}
	if !e.sweeping.CompareAndSwap(false, true) {
		return ErrSweepInProgress
	}
	defer e.sweeping.Store(false)

	e.busy.Add(1)
	defer e.busy.Add(-1)

	started := e.now()
	if err := e.sweep(ctx); err != nil {
		e.logger.Warn(ctx, "sweep failed", "error", err)
		e.goOffline(ctx, err)
		e.scheduleRetry(ctx)
		e.recordSweep(ctx, started, err)
		return err
	}

	e.queue.Cancel(retryTaskName)
	finished := e.now()
	e.mu.Lock()
	e.attempt = 0
	e.lastErr = ""
	e.lastSyncAt = finished
	e.mu.Unlock()

	e.recordSweep(ctx, finished, nil)
	e.logger.Info(ctx, "sweep finished", "took", finished.Sub(started).String())
	return nil
}

// recordSweep persists the outcome of a sweep so it survives restarts.
func (e *Engine) recordSweep(ctx context.Context, at time.Time, cause error) {
	if e.deps.Metadata == nil {
		return
	}
	var err error
	if cause != nil {
		err = e.deps.Metadata.Set(ctx, metadata.KeyLastSyncError, cause.Error(), at)
	} else if err = e.deps.Metadata.SetTime(ctx, metadata.KeyLastSyncAt, at); err == nil {
		err = e.deps.Metadata.Delete(ctx, metadata.KeyLastSyncError)
	}
	if err != nil {
		e.logger.Warn(ctx, "failed to record sweep outcome", "error", err)
	}
}

// Restore loads the persisted sweep outcome into the snapshot. It is called
// once at startup and again after the bookkeeping is cleared.
func (e *Engine) Restore(ctx context.Context) error {
	if e.deps.Metadata == nil {
		return nil
	}
	last, err := e.deps.Metadata.GetTime(ctx, metadata.KeyLastSyncAt)
	if err != nil {
		return err
	}
	var lastErr string
	entry, err := e.deps.Metadata.Get(ctx, metadata.KeyLastSyncError)
	switch {
	case err == nil:
		lastErr = entry.Value
	case !errors.Is(err, common.ErrNotFound):
		return err
	}

	e.mu.Lock()
	e.lastSyncAt = last
	e.lastErr = lastErr
	e.mu.Unlock()
	return nil
}

func (e *Engine) sweep(ctx context.Context) error {
	pending, err := e.deps.Deletes.List(ctx, 0)
	if err != nil {
		return err
	}
	for _, d := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.replayDelete(ctx, d); err != nil {
			return err
		}
	}

	for _, p := range models.SweepOrder {
		if err := e.sweepEntities(ctx, p); err != nil {
			return err
		}
		if err := e.sweepAttachments(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Each batch loop stops once a batch is short or acknowledged nothing, so a
// record rewritten on every pass cannot keep the sweep spinning.
func (e *Engine) sweepEntities(ctx context.Context, p models.Priority) error {
	for {
		batch, err := e.deps.Entities.ListPending(ctx, p, e.cfg.BatchSize)
		if err != nil {
			return err
		}
		progressed := false
		for _, ent := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := e.replicateEntity(ctx, ent)
			if err != nil {
				return err
			}
			progressed = progressed || ok
		}
		if len(batch) < e.cfg.BatchSize || !progressed {
			return nil
		}
	}
}

func (e *Engine) sweepAttachments(ctx context.Context, p models.Priority) error {
	for {
		batch, err := e.deps.Attachments.ListPending(ctx, p, e.cfg.BatchSize)
		if err != nil {
			return err
		}
		progressed := false
		for _, att := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := e.replicateAttachment(ctx, att)
			if err != nil {
				return err
			}
			progressed = progressed || ok
		}
		if len(batch) < e.cfg.BatchSize || !progressed {
			return nil
		}
	}
}

// ForceSync connects and sweeps regardless of schedule.
func (e *Engine) ForceSync(ctx context.Context) error {
	if !e.Connect(ctx) {
		return common.ErrRemoteUnavailable
	}
	return e.Sweep(ctx)
}

// Tick runs one iteration of the status loop: due retries first, then the
// connectivity check. A fresh transition into online triggers a sweep unless
// a retry is still queued.
func (e *Engine) Tick(ctx context.Context) {
	if e.deps.Replica == nil {
		return
	}

	if due := e.queue.Due(e.now()); len(due) > 0 {
		for _, t := range due {
			e.logger.Info(ctx, "running sync retry", "attempt", t.Attempt)
			if !e.connect(ctx, false) {
				e.scheduleRetry(ctx)
				continue
			}
			_ = e.Sweep(ctx)
		}
		return
	}

	if !e.deps.Prober.IsReachable(ctx) {
		e.goOffline(ctx, common.ErrRemoteUnavailable)
		return
	}
	if e.online.Load() {
		return
	}
	// A queued retry owns the next attempt. Until it runs or the budget is
	// spent the loop only probes, so backoff is not cut short.
	if e.queue.Has(retryTaskName) {
		return
	}
	if e.Connect(ctx) {
		if err := e.Sweep(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
			e.logger.Debug(ctx, "sweep after reconnect failed", "error", err)
		}
	}
}

// Run drives Tick every StatusInterval until ctx is cancelled, then waits for
// background notifications.
func (e *Engine) Run(ctx context.Context) {
	defer e.Wait()
	if e.deps.Replica == nil {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(e.cfg.StatusInterval)
	defer ticker.Stop()

	e.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}
