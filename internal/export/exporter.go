package export

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"voxport/internal/archive"
	"voxport/internal/config"
	"voxport/internal/dataset"
	"voxport/internal/fetch"
	"voxport/internal/jobs"
	"voxport/internal/logging"
	"voxport/internal/objectstore"
	"voxport/internal/services"
)

// NoSamplesMessage is the failure reason recorded when a job's filter
// matches nothing.
const NoSamplesMessage = "no matching samples found"

// Exporter runs one export job end to end: resolve the record subset, fetch
// audio with bounded concurrency, stream the ZIP into the bucket, and record
// the outcome on the job row.
type Exporter struct {
	cfg     *config.Config
	records *dataset.Store
	jobs    *jobs.Store
	store   *objectstore.Client
	fetcher *fetch.Fetcher
	logger  *slog.Logger
}

// New builds an exporter over the shared stores.
func New(cfg *config.Config, records *dataset.Store, jobStore *jobs.Store, store *objectstore.Client, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Exporter{
		cfg:     cfg,
		records: records,
		jobs:    jobStore,
		store:   store,
		fetcher: fetch.New(cfg, store, logger),
		logger:  logger.With(logging.String(logging.FieldComponent, "export")),
	}
}

// Run executes a claimed job. The job row always ends in ready or failed;
// the returned error reflects the failure for logging.
func (e *Exporter) Run(ctx context.Context, job *jobs.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithLanguage(ctx, job.Language)
	logger := logging.WithContext(ctx, e.logger)
	logger.Info("export started",
		logging.Float64("percentage", job.Percentage))

	if err := e.run(ctx, job, logger); err != nil {
		message := services.Details(err)
		if errors.Is(err, dataset.ErrNoRecords) {
			message = NoSamplesMessage
		}
		if failErr := e.jobs.SetFailed(context.WithoutCancel(ctx), job.ID, message); failErr != nil {
			logger.Error("record job failure", logging.Error(failErr))
		}
		logger.Error("export failed", logging.Error(err))
		return err
	}
	return nil
}

func (e *Exporter) run(ctx context.Context, job *jobs.Job, logger *slog.Logger) error {
	criteria, err := dataset.Criteria{
		Language:  job.Language,
		Gender:    job.Gender,
		AgeGroup:  job.AgeGroup,
		Education: job.Education,
		Domain:    job.Domain,
		Category:  job.Category,
		Split:     job.Split,
	}.Normalize()
	if err != nil {
		return err
	}

	selector := dataset.PercentSelector(job.Percentage)
	cursor, total, err := e.records.Stream(ctx, criteria, selector)
	if err != nil {
		return err
	}
	defer cursor.Close()

	selected, err := selector.Count(total)
	if err != nil {
		return err
	}
	if err := e.jobs.SetProgress(ctx, job.ID, 0, 0, selected); err != nil {
		return err
	}

	key := archive.ExportKey(job.Language, job.Percentage, job.ID)
	upload, err := e.store.NewMultipartUpload(ctx, key, "application/zip")
	if err != nil {
		return services.Wrap(services.ErrTransient, "export", "create upload", "", err)
	}

	builder := archive.NewBuilder(upload, archive.Options{
		Language:    job.Language,
		Percentage:  job.Percentage,
		Date:        time.Now().UTC(),
		IncludeXLSX: job.Format == "xlsx",
	})

	processed, err := e.assemble(ctx, job, cursor, builder, selected, logger)
	if err != nil {
		if abortErr := upload.Abort(); abortErr != nil {
			logger.Warn("abort multipart upload", logging.Error(abortErr))
		}
		return err
	}

	if err := builder.Finalize(); err != nil {
		if abortErr := upload.Abort(); abortErr != nil {
			logger.Warn("abort multipart upload", logging.Error(abortErr))
		}
		return err
	}
	if err := upload.Close(); err != nil {
		if abortErr := upload.Abort(); abortErr != nil {
			logger.Warn("abort multipart upload", logging.Error(abortErr))
		}
		return err
	}

	filename := archive.FileName(job.Language, job.Percentage, time.Now().UTC())
	downloadURL, err := e.store.PresignGet(ctx, key, filename)
	if err != nil {
		return services.Wrap(services.ErrTransient, "export", "presign download", "", err)
	}

	if err := e.jobs.SetReady(ctx, job.ID, key, downloadURL, processed); err != nil {
		return err
	}
	logger.Info("export ready",
		logging.Int("samples", processed),
		logging.Int64("archive_bytes", upload.BytesWritten()))
	return nil
}

// assemble drains the record cursor through the fetcher into the archive,
// skipping records whose audio cannot be retrieved and reporting progress as
// it goes. The denominator maps completed fetches onto 0-95; the final five
// points cover archive finalization and upload completion.
func (e *Exporter) assemble(ctx context.Context, job *jobs.Job, cursor *dataset.Cursor, builder *archive.Builder, selected int, logger *slog.Logger) (int, error) {
	// An early return must tear down the cursor pump and the fetch fan-out,
	// which otherwise block on channel sends for the daemon's lifetime.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make(chan dataset.AudioRecord)
	cursorErr := make(chan error, 1)
	go func() {
		defer close(records)
		for cursor.Next() {
			select {
			case records <- cursor.Record():
			case <-ctx.Done():
				cursorErr <- ctx.Err()
				return
			}
		}
		cursorErr <- cursor.Err()
	}()

	processed := 0
	attempted := 0
	for result := range e.fetcher.Stream(ctx, records) {
		attempted++
		if result.Err != nil {
			continue
		}
		if err := builder.AddAudio(result.Record, result.Data); err != nil {
			return processed, err
		}
		processed++

		if processed%e.cfg.Export.ProgressEvery == 0 {
			progress := int(float64(attempted) / float64(selected) * 95)
			if err := e.jobs.SetProgress(ctx, job.ID, progress, processed, selected); err != nil {
				return processed, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return processed, err
	}
	if err := <-cursorErr; err != nil {
		return processed, err
	}
	return processed, nil
}
