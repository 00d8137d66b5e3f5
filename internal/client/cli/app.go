package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/tallysync/internal/client/config"
	"github.com/dmitrijs2005/tallysync/internal/client/connectivity"
	"github.com/dmitrijs2005/tallysync/internal/client/models"
	"github.com/dmitrijs2005/tallysync/internal/client/records"
	"github.com/dmitrijs2005/tallysync/internal/client/remote"
	"github.com/dmitrijs2005/tallysync/internal/client/scheduler"
	"github.com/dmitrijs2005/tallysync/internal/client/status"
	"github.com/dmitrijs2005/tallysync/internal/client/store"
	"github.com/dmitrijs2005/tallysync/internal/client/syncer"
	"github.com/dmitrijs2005/tallysync/internal/filex"
	"github.com/dmitrijs2005/tallysync/internal/logging"
	"golang.org/x/term"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	collections *models.CollectionSet
	store       *store.SQLiteStore
	records     *records.Service
	engine      *syncer.Engine
	scheduler   *scheduler.Scheduler
	projection  *status.Projection
	status      *status.Handler
	watcher     *connectivity.Watcher
	probe       connectivity.Probe

	input       io.Reader
	interactive bool
}

// NewApp opens the local store and builds every component from c.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	collections, err := models.NewCollectionSet(c.Collections)
	if err != nil {
		return nil, err
	}

	if _, err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, c.DatabasePath, collections)
	if err != nil {
		return nil, err
	}

	submitters, err := remote.NewRouter(ctx, collections.Specs(), remote.Options{
		Timeout:   c.SubmitTimeout,
		AuthToken: c.AuthToken,
		S3: remote.S3Options{
			Region:       c.S3.Region,
			BaseEndpoint: c.S3.BaseEndpoint,
			AccessKey:    c.S3.AccessKey,
			SecretKey:    c.S3.SecretKey,
		},
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var probe connectivity.Probe
	if c.ProbeAddr != "" {
		probe, err = connectivity.NewProbe(c.ProbeAddr)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	a := newApp(c, logger, st, collections, submitters, probe)
	a.input = os.Stdin
	a.interactive = term.IsTerminal(int(os.Stdin.Fd()))
	return a, nil
}

func newApp(c *config.Config, logger logging.Logger, st *store.SQLiteStore, collections *models.CollectionSet,
	submitters map[string]remote.Submitter, probe connectivity.Probe) *App {

	targets := make([]syncer.Target, 0, len(submitters))
	for _, name := range collections.Names() {
		targets = append(targets, syncer.Target{Collection: name, Submitter: submitters[name]})
	}

	engine := syncer.NewEngine(st, targets, logger)
	projection := status.NewProjection()
	sched := scheduler.New(engine, projection, c.SyncInterval, c.OfflineMode, logger)

	a := &App{
		config:      c,
		logger:      logger.With("module", "cli"),
		collections: collections,
		store:       st,
		records:     records.NewService(st, collections),
		engine:      engine,
		scheduler:   sched,
		projection:  projection,
		status:      status.NewHandler(projection, sched, logger),
		probe:       probe,
	}
	if probe != nil {
		a.watcher = connectivity.NewWatcher(probe, c.ProbeInterval, logger, sched.OnConnectivityRegained)
	}
	return a
}

// Run starts the background components and the REPL. It returns when the
// user exits or ctx is cancelled; an in-flight sync pass is allowed to finish.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.projection.SetRemaining(a.engine.Pending(ctx))

	if err := a.scheduler.Start(ctx); err != nil {
		_ = a.store.Close()
		return err
	}

	var wg sync.WaitGroup
	if a.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.watcher.Run(ctx)
		}()
	}
	if a.config.StatusAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.status.Serve(ctx, a.config.StatusAddr); err != nil {
				a.logger.Error(ctx, "status server failed", "error", err)
			}
		}()
	}

	a.logger.Info(ctx, "tallysync client started",
		"collections", a.collections.Names(), "offline_mode", a.scheduler.OfflineMode())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if a.interactive {
			printlnFn("tallysync (type 'help' for commands)")
		}
		runREPL(ctx, a, a.prompt, bufio.NewScanner(a.input), a.interactive)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()
	a.scheduler.Stop()
	return a.Close()
}

// Close releases the store and the probe connection.
func (a *App) Close() error {
	if c, ok := a.probe.(io.Closer); ok {
		_ = c.Close()
	}
	return a.store.Close()
}

func (a *App) prompt() string {
	mode := connectivity.ModeUnknown
	if a.watcher != nil {
		mode = a.watcher.Mode()
	}
	syncFlag := "off"
	if a.scheduler.OfflineMode() {
		syncFlag = "on"
	}
	return fmt.Sprintf("(%s sync:%s)", mode, syncFlag)
}
