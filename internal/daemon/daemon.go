package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"voxport/internal/config"
	"voxport/internal/dataset"
	"voxport/internal/export"
	"voxport/internal/jobs"
	"voxport/internal/logging"
	"voxport/internal/objectstore"
	"voxport/internal/worker"
)

// Daemon coordinates the export worker pool and the HTTP API, and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	records *dataset.Store
	jobs    *jobs.Store
	store   *objectstore.Client
	pool    *worker.Pool
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	JobDBPath    string
	LockFilePath string
	Jobs         jobs.Stats
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, records *dataset.Store, jobStore *jobs.Store, store *objectstore.Client, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || records == nil || jobStore == nil || store == nil {
		return nil, errors.New("daemon requires config, record store, job store, and object store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	exporter := export.New(cfg, records, jobStore, store, logger)
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		records:  records,
		jobs:     jobStore,
		store:    store,
		pool:     worker.NewPool(cfg, jobStore, exporter, logger),
		lockPath: cfg.LockFilePath(),
		lock:     flock.New(cfg.LockFilePath()),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the worker pool and API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another voxportd instance is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.pool.Start(ctx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker pool: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(ctx); err != nil {
			d.pool.Stop()
			cancel()
			d.cancel = nil
			_ = d.lock.Unlock()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("voxportd started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.pool.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("voxportd stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.jobs != nil {
		errs = append(errs, d.jobs.Close())
	}
	if d.records != nil {
		errs = append(errs, d.records.Close())
	}
	return errors.Join(errs...)
}

// APIAddr returns the bound API address, empty until Start.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status reports runtime information for the status endpoint and CLI.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		JobDBPath:    d.jobs.Path(),
		LockFilePath: d.lockPath,
	}
	stats, err := d.jobs.Stats(ctx)
	if err != nil {
		d.logger.Warn("collect job stats", logging.Error(err))
	} else {
		status.Jobs = stats
	}
	return status
}
