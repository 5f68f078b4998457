package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"voxport/internal/config"
	"voxport/internal/dataset"
	"voxport/internal/logging"
	"voxport/internal/retry"
)

const copyChunkSize = 64 * 1024

// Source resolves an object key into a content stream.
type Source interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Fetcher retrieves raw audio content for catalogue records. Records whose
// storage link is a URL are fetched over HTTP; all others are treated as
// object keys against the content store. Transient failures are retried
// with exponential backoff.
type Fetcher struct {
	source      Source
	httpClient  *http.Client
	policy      retry.Policy
	sem         *semaphore.Weighted
	concurrency int
	logger      *slog.Logger
}

// New builds a fetcher tuned from the fetch section of the daemon config.
func New(cfg *config.Config, source Source, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	transport := &http.Transport{
		MaxConnsPerHost:     cfg.Fetch.MaxConnsPerHost,
		MaxIdleConnsPerHost: cfg.Fetch.MaxConnsPerHost,
	}
	return &Fetcher{
		source: source,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Fetch.RequestTimeout) * time.Second,
		},
		policy: retry.Policy{
			MaxAttempts: cfg.Fetch.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Fetch.RetryBaseSeconds) * time.Second,
			MaxDelay:    30 * time.Second,
		},
		sem:         semaphore.NewWeighted(int64(cfg.Fetch.Concurrency)),
		concurrency: cfg.Fetch.Concurrency,
		logger:      logger.With(logging.String(logging.FieldComponent, "fetch")),
	}
}

// Fetch retrieves one record's audio bytes, retrying transient failures. It
// returns the last error once the retry budget is exhausted.
func (f *Fetcher) Fetch(ctx context.Context, record dataset.AudioRecord) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, f.policy, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			f.logger.Debug("retrying audio fetch",
				logging.String(logging.FieldRecordID, record.ID),
				logging.Int("attempt", attempt))
		}
		fetched, err := f.fetchOnce(ctx, record)
		if err != nil {
			return err
		}
		data = fetched
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch audio for record %s: %w", record.ID, err)
	}
	return data, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, record dataset.AudioRecord) ([]byte, error) {
	if dataset.IsURLLocator(record.StorageLink) {
		return f.fetchHTTP(ctx, record.StorageLink)
	}
	key := record.StorageLink
	if key == "" {
		key = dataset.StorageKey(record)
	}
	return f.fetchObject(ctx, key)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return readAll(resp.Body)
}

func (f *Fetcher) fetchObject(ctx context.Context, key string) ([]byte, error) {
	reader, err := f.source.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return readAll(reader)
}

// readAll accumulates the stream in fixed-size chunks so a slow or stalled
// peer never pins a large intermediate buffer.
func readAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, copyChunkSize)
	if _, err := io.CopyBuffer(&buf, r, chunk); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return buf.Bytes(), nil
}
