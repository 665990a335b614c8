package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"murmur/internal/config"
	"murmur/internal/connectivity"
	"murmur/internal/diaglog"
	"murmur/internal/logging"
	"murmur/internal/notes"
	"murmur/internal/notifications"
	"murmur/internal/quota"
	"murmur/internal/reconciler"
	"murmur/internal/secrets"
	"murmur/internal/services/inference"
	"murmur/internal/store"
	"murmur/internal/syncqueue"
)

// Daemon owns the murmur service graph and its background loops.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	kv         *store.SQLite
	notes      *notes.Store
	secrets    *secrets.Store
	diag       *diaglog.Sink
	notifier   notifications.Service
	client     *inference.Client
	queue      *syncqueue.Queue
	reconciler *reconciler.Reconciler
	governor   *quota.Governor
	watcher    *connectivity.Watcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status reports daemon runtime information.
type Status struct {
	Running       bool
	Online        bool
	QueuedItems   int
	PendingNotes  int
	Storage       quota.Status
	DatabasePath  string
	LockFilePath  string
	HasCredential bool
}

// New builds the full service graph without starting any background work.
// One-shot CLI commands use the same constructor and simply never call Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}

	kv, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	noteStore := notes.NewStore(kv)
	secretStore := secrets.NewStore(kv, logger)
	diag := diaglog.NewSink(kv, logger, cfg.Storage.DiagnosticCap)
	notifier := notifications.NewService(cfg)
	client := inference.NewClient(inference.Config{
		BaseURL:        cfg.Inference.BaseURL,
		Model:          cfg.Inference.Model,
		TimeoutSeconds: cfg.Inference.TimeoutSeconds,
	}, inference.WithMaxRetries(cfg.Sync.MaxRetries))
	watcher := connectivity.NewWatcher(cfg, logger)

	queue := syncqueue.New(kv, noteStore, client, secretStore, watcher.Online,
		notifier, diag, logger, syncqueue.WithMaxRetries(cfg.Sync.MaxRetries))
	rec := reconciler.New(kv, noteStore, client, secretStore, watcher.Online, notifier, logger)
	governor := quota.New(kv, noteStore, diag, notifier, logger,
		cfg.Storage.BudgetBytes, cfg.Storage.KeepRecentNotes)

	lockPath := filepath.Join(cfg.Paths.DataDir, "murmur.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		kv:         kv,
		notes:      noteStore,
		secrets:    secretStore,
		diag:       diag,
		notifier:   notifier,
		client:     client,
		queue:      queue,
		reconciler: rec,
		governor:   governor,
		watcher:    watcher,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the single-instance lock and launches the background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another murmur daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.watcher.Run(runCtx)
	}()
	go func() {
		defer d.wg.Done()
		d.loop(runCtx)
	}()

	d.logger.Info("murmur daemon started", logging.String("lock", d.lockPath))
	return nil
}

// loop reacts to connectivity transitions and the periodic drain timer.
func (d *Daemon) loop(ctx context.Context) {
	events := d.watcher.Subscribe()
	ticker := time.NewTicker(d.cfg.DrainInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if event.Online {
				d.runPass(ctx)
			}
		case <-ticker.C:
			if d.watcher.Online() {
				d.runPass(ctx)
			}
		}
	}
}

// runPass is one full background cycle: drain the queue, reconcile pending
// notes, then check whether storage needs reclaiming.
func (d *Daemon) runPass(ctx context.Context) {
	d.queue.Drain(ctx)
	if err := d.reconciler.ProcessPending(ctx, nil); err != nil {
		d.logger.Warn("reconciliation pass failed", logging.Error(err))
	}
	if d.governor.Status(ctx).RecommendedAction == quota.ActionCleanup {
		d.governor.Cleanup(ctx)
	}
}

// Stop halts background processing and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("murmur daemon stopped")
}

// Close stops the daemon and releases the store. Any optimistic post-enqueue
// drain still in flight finishes before the store is closed under it.
func (d *Daemon) Close() error {
	d.Stop()
	d.queue.Wait()
	if d.kv != nil {
		return d.kv.Close()
	}
	return nil
}

// Status returns a point-in-time snapshot of daemon state.
func (d *Daemon) Status(ctx context.Context) Status {
	queued, err := d.queue.Len(ctx)
	if err != nil {
		d.logger.Warn("failed to read queue length", logging.Error(err))
	}
	pending, err := d.reconciler.PendingIDs(ctx)
	if err != nil {
		d.logger.Warn("failed to read pending markers", logging.Error(err))
	}
	credential, err := d.secrets.Retrieve(ctx)
	if err != nil {
		d.logger.Warn("failed to read credential", logging.Error(err))
	}
	return Status{
		Running:       d.running.Load(),
		Online:        d.watcher.Online(),
		QueuedItems:   queued,
		PendingNotes:  len(pending),
		Storage:       d.governor.Status(ctx),
		DatabasePath:  d.cfg.DatabasePath(),
		LockFilePath:  d.lockPath,
		HasCredential: credential != "",
	}
}

// TestNotification sends a test push through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Notes exposes the note store for CLI commands.
func (d *Daemon) Notes() *notes.Store { return d.notes }

// Queue exposes the sync queue for CLI commands.
func (d *Daemon) Queue() *syncqueue.Queue { return d.queue }

// Secrets exposes the credential store for CLI commands.
func (d *Daemon) Secrets() *secrets.Store { return d.secrets }

// Governor exposes the storage quota governor for CLI commands.
func (d *Daemon) Governor() *quota.Governor { return d.governor }

// Reconciler exposes the offline note reconciler for CLI commands.
func (d *Daemon) Reconciler() *reconciler.Reconciler { return d.reconciler }

// Diagnostics exposes the diagnostic sink for CLI commands.
func (d *Daemon) Diagnostics() *diaglog.Sink { return d.diag }
