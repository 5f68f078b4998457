package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voxport/internal/config"
	"voxport/internal/jobs"
	"voxport/internal/logging"
	"voxport/internal/notifications"
)

// Runner executes one claimed job to a terminal status.
type Runner interface {
	Run(ctx context.Context, job *jobs.Job) error
}

// Pool polls the job store and fans claimed jobs out to a fixed set of
// workers. At most one worker processes a given job; claiming is atomic at
// the store level.
type Pool struct {
	cfg      *config.Config
	jobs     *jobs.Store
	runner   Runner
	notifier notifications.Service
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool builds a pool over the shared job store.
func NewPool(cfg *config.Config, jobStore *jobs.Store, runner Runner, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		cfg:      cfg,
		jobs:     jobStore,
		runner:   runner,
		notifier: notifications.NewService(cfg),
		logger:   logger.With(logging.String(logging.FieldComponent, "worker")),
	}
}

// Start requeues jobs stranded in processing by a previous run and launches
// the worker goroutines. It returns immediately.
func (p *Pool) Start(ctx context.Context) error {
	reset, err := p.jobs.ResetStuckProcessing(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		p.logger.Info("requeued interrupted jobs", logging.Int64("count", reset))
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	for i := 0; i < p.cfg.Export.Workers; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
	p.logger.Info("worker pool started", logging.Int("workers", p.cfg.Export.Workers))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs to finish their
// current terminal write.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()

	interval := time.Duration(p.cfg.Export.QueuePollSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Drain the queue before sleeping so bursts are not paced by the
		// poll interval.
		for {
			job, err := p.jobs.ClaimQueued(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Error("claim job", logging.Error(err))
				break
			}
			if job == nil {
				break
			}
			p.logger.Info("job claimed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Int("worker", id))
			// Terminal status is recorded by the runner; the error here is
			// already logged with job context.
			_ = p.runner.Run(ctx, job)
			p.notify(ctx, job.ID)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// notify pushes a completion notification for the job's terminal status.
// Notification failures never affect the job outcome.
func (p *Pool) notify(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)
	job, err := p.jobs.Get(ctx, id)
	if err != nil {
		p.logger.Warn("load job for notification", logging.Error(err))
		return
	}

	switch job.Status {
	case jobs.StatusReady:
		err = p.notifier.NotifyExportReady(ctx, job.Language, job.Percentage, job.SampleCount, job.DownloadURL)
	case jobs.StatusFailed:
		err = p.notifier.NotifyExportFailed(ctx, job.Language, job.Percentage, job.ErrorMessage)
	default:
		return
	}
	if err != nil {
		p.logger.Warn("send notification",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	}
}
