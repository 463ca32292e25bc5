package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/gophsync/internal/client/config"
	"github.com/dmitrijs2005/gophsync/internal/client/probe"
	"github.com/dmitrijs2005/gophsync/internal/client/remote"
	"github.com/dmitrijs2005/gophsync/internal/client/services"
	"github.com/dmitrijs2005/gophsync/internal/client/store"
	"github.com/dmitrijs2005/gophsync/internal/client/syncer"
	"github.com/dmitrijs2005/gophsync/internal/client/transfer"
	"github.com/dmitrijs2005/gophsync/internal/logging"
)

// App wires the local store, the transfer manager, the sync engine and the
// façade, and drives them from an interactive REPL.
type App struct {
	config *config.Config
	logger logging.Logger

	repos   *store.Repositories
	files   *transfer.Manager
	engine  *syncer.Engine
	svc     *services.EntityService
	closers []io.Closer

	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens everything under cfg.DataDir. The device secret is prompted
// for when the replica needs one and stdin is a terminal.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if cfg.RemoteMode == remote.ModeGRPC && cfg.DeviceSecret == "" && StdinIsTerminal() {
		secret, err := GetSecret(os.Stdout, "Device secret: ")
		if err != nil {
			return nil, fmt.Errorf("read device secret: %w", err)
		}
		cfg.DeviceSecret = string(secret)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	repos, err := store.InitDatabase(ctx, cfg.DBPath(), logger)
	if err != nil {
		return nil, err
	}
	a := &App{
		config:  cfg,
		logger:  logger,
		repos:   repos,
		closers: []io.Closer{repos},
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}

	a.files, err = transfer.New(cfg.TransferConfig(), logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if n, err := a.files.StartupSweep(); err != nil {
		logger.Warn(ctx, "startup sweep incomplete", "error", err)
	} else if n > 0 {
		logger.Info(ctx, "removed orphaned transfer files", "count", n)
	}

	replica, closer, err := remote.New(cfg.RemoteOptions())
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closer)

	prober := probe.New(cfg.ProbeAddress(), cfg.ProbeTimeout)
	a.engine = syncer.New(cfg.SyncConfig(), syncer.Deps{
		Prober:      prober,
		Replica:     replica,
		Entities:    repos.Entities,
		Attachments: repos.Attachments,
		Deletes:     repos.Deletes,
		Metadata:    repos.Metadata,
		Blobs:       a.files,
	}, logger)
	if err := a.engine.Restore(ctx); err != nil {
		logger.Warn(ctx, "failed to restore sync state", "error", err)
	}

	a.svc = services.NewEntityService(services.Deps{
		DB:          repos.DB,
		Entities:    repos.Entities,
		Attachments: repos.Attachments,
		Deletes:     repos.Deletes,
		Metadata:    repos.Metadata,
		Files:       a.files,
		Sync:        a.engine,
		Prober:      prober,
	}, logger)

	return a, nil
}

// Run starts the background loops, blocks in the REPL until the user exits
// or ctx is done, then stops the loops.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.engine.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.files.Run(ctx, 0)
	}()

	stopWatch, err := a.files.StartWatcher(ctx)
	if err != nil {
		a.logger.Warn(ctx, "temp dir watcher disabled", "error", err)
	} else {
		defer stopWatch()
	}

	fmt.Fprintln(a.out, "Welcome to gophsync (type 'help' for commands)")
	runREPL(ctx, a, a.prompt, bufio.NewScanner(a.reader))

	cancel()
	wg.Wait()
}

// prompt never probes the network, so an unreachable host cannot stall it.
func (a *App) prompt() string {
	st := a.svc.LocalStatus(context.Background())
	return fmt.Sprintf("(%s, %d pending)", st.State, st.PendingCount+st.PendingDeletes)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
