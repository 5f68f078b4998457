package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"voxport/internal/api"
	"voxport/internal/archive"
	"voxport/internal/config"
	"voxport/internal/dataset"
	"voxport/internal/export"
	"voxport/internal/fetch"
	"voxport/internal/jobs"
	"voxport/internal/logging"
	"voxport/internal/logs"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	fetcher *fetch.Fetcher

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		logger:  logger,
		daemon:  d,
		fetcher: fetch.New(cfg, d.store, logger),
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/exports", authMiddleware(token, srv.handleExportList))
	mux.HandleFunc("/api/exports/", authMiddleware(token, srv.handleExportPath))
	mux.HandleFunc("/api/download/", authMiddleware(token, srv.handleDownload))
	mux.HandleFunc("/api/samples/", authMiddleware(token, srv.handleSamples))
	mux.HandleFunc("/api/estimate/", authMiddleware(token, srv.handleEstimate))
	mux.HandleFunc("/api/logs", authMiddleware(token, srv.handleLogs))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:    status.Running,
		PID:        status.PID,
		Queued:     status.Jobs.Queued,
		Processing: status.Jobs.Processing,
		Ready:      status.Jobs.Ready,
		Failed:     status.Jobs.Failed,
		Total:      status.Jobs.Total,
		JobDBPath:  status.JobDBPath,
	})
}

func (s *apiServer) handleExportList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := jobs.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := s.daemon.jobs.List(r.Context(), status, limit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	views := make([]api.JobStatus, 0, len(list))
	for _, job := range list {
		views = append(views, api.FromJob(job))
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: views})
}

// handleExportPath dispatches /api/exports/{language}/{pct} submissions,
// /api/exports/{id} lookups, and /api/exports/{id}/ws streams.
func (s *apiServer) handleExportPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/exports/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case r.Method == http.MethodPost && len(parts) == 2:
		s.handleSubmit(w, r, parts[0], parts[1])
	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] != "":
		s.handleJobStatus(w, r, parts[0])
	case r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "ws":
		s.handleJobSocket(w, r, parts[0])
	case r.Method != http.MethodGet && r.Method != http.MethodPost:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request, language, pctRaw string) {
	criteria, pct, ok := s.parseSelection(w, r, language, pctRaw)
	if !ok {
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "", "csv":
		format = "csv"
	case "xlsx":
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("metadata format %q must be csv or xlsx", format))
		return
	}

	job, err := s.daemon.jobs.Create(r.Context(), jobs.Job{
		UserID:     strings.TrimSpace(r.URL.Query().Get("user_id")),
		Language:   criteria.Language,
		Percentage: pct,
		Gender:     criteria.Gender,
		AgeGroup:   criteria.AgeGroup,
		Education:  criteria.Education,
		Domain:     criteria.Domain,
		Category:   criteria.Category,
		Split:      criteria.Split,
		Format:     format,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log().Info("export job queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldLanguage, job.Language))
	s.writeJSON(w, http.StatusAccepted, api.ExportSubmitted{JobID: job.ID, Status: string(job.Status)})
}

func (s *apiServer) handleJobStatus(w http.ResponseWriter, r *http.Request, id string) {
	job, err := s.daemon.jobs.Get(r.Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

// handleDownload streams a ZIP synchronously for small subsets. Larger
// selections are rejected with a pointer at the async flow.
func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/download/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	criteria, pct, ok := s.parseSelection(w, r, parts[0], parts[1])
	if !ok {
		return
	}

	records, _, err := s.daemon.records.Resolve(r.Context(), criteria, dataset.PercentSelector(pct))
	if errors.Is(err, dataset.ErrNoRecords) {
		s.writeError(w, http.StatusNotFound, export.NoSamplesMessage)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if max := s.daemon.cfg.Export.SyncMaxRecords; len(records) > max {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("selection of %d samples exceeds the synchronous limit of %d; submit an export job instead", len(records), max))
		return
	}

	now := time.Now().UTC()
	includeXLSX := strings.EqualFold(r.URL.Query().Get("format"), "xlsx")
	filename := archive.FileName(criteria.Language, pct, now)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	builder := archive.NewBuilder(w, archive.Options{
		Language:    criteria.Language,
		Percentage:  pct,
		Date:        now,
		IncludeXLSX: includeXLSX,
	})

	feed := make(chan dataset.AudioRecord, len(records))
	for _, record := range records {
		feed <- record
	}
	close(feed)
	for result := range s.fetcher.Stream(r.Context(), feed) {
		if result.Err != nil {
			continue
		}
		if err := builder.AddAudio(result.Record, result.Data); err != nil {
			// The response is already partially written; all we can do is
			// stop and let the client see a truncated archive.
			s.log().Error("write download entry", logging.Error(err))
			_ = builder.Abort()
			return
		}
	}
	if err := builder.Finalize(); err != nil {
		s.log().Error("finalize download archive", logging.Error(err))
	}
}

func (s *apiServer) handleSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/samples/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "preview" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	criteria, ok := s.parseCriteria(w, r, parts[0])
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := s.daemon.records.Preview(r.Context(), criteria, limit)
	if errors.Is(err, dataset.ErrNoRecords) {
		s.writeError(w, http.StatusNotFound, export.NoSamplesMessage)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	samples := make([]api.SampleView, 0, len(records))
	for _, record := range records {
		view := api.SampleView{
			ID:         record.ID,
			Language:   record.Language,
			Category:   string(record.Category),
			SpeakerID:  record.SpeakerID,
			Transcript: record.Transcript,
			Duration:   record.Duration,
			Gender:     record.Gender,
			AgeGroup:   record.AgeGroup,
			Education:  record.Education,
			SNR:        record.SNR,
			Domain:     record.Domain,
		}
		if dataset.IsURLLocator(record.StorageLink) {
			view.AudioURL = record.StorageLink
		} else {
			key := record.StorageLink
			if key == "" {
				key = dataset.StorageKey(record)
			}
			url, err := s.daemon.store.PresignGet(r.Context(), key, "")
			if err != nil {
				s.log().Warn("presign preview sample", logging.Error(err),
					logging.String(logging.FieldRecordID, record.ID))
			} else {
				view.AudioURL = url
			}
		}
		samples = append(samples, view)
	}
	s.writeJSON(w, http.StatusOK, api.PreviewResponse{Language: criteria.Language, Samples: samples})
}

// handleEstimate sums object sizes for the selection. Records whose size
// cannot be determined contribute zero.
func (s *apiServer) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/estimate/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	criteria, pct, ok := s.parseSelection(w, r, parts[0], parts[1])
	if !ok {
		return
	}

	records, _, err := s.daemon.records.Resolve(r.Context(), criteria, dataset.PercentSelector(pct))
	if errors.Is(err, dataset.ErrNoRecords) {
		s.writeError(w, http.StatusNotFound, export.NoSamplesMessage)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var total int64
	for _, record := range records {
		size, err := s.recordSize(r.Context(), record)
		if err != nil {
			s.log().Warn("estimate sample size", logging.Error(err),
				logging.String(logging.FieldRecordID, record.ID))
			continue
		}
		total += size
	}
	s.writeJSON(w, http.StatusOK, api.EstimateResponse{
		Language:    criteria.Language,
		Percentage:  pct,
		SampleCount: len(records),
		TotalBytes:  total,
		HumanSize:   api.FormatBytes(total),
	})
}

// handleLogs tails the daemon log file. A negative offset means "last limit
// lines"; follow=true holds the request open briefly waiting for new lines.
func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()

	offset := int64(-1)
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid offset %q", raw))
			return
		}
		offset = parsed
	}
	limit := 100
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}
	follow := strings.EqualFold(query.Get("follow"), "true")

	tailer := logs.NewTailer(s.daemon.cfg.LogFilePath())
	var page logs.Page
	var err error
	if offset < 0 {
		page, err = tailer.Last(limit)
	} else {
		var wait time.Duration
		if follow {
			wait = 25 * time.Second
		}
		page, err = tailer.Since(r.Context(), offset, follow, wait)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.LogTailResponse{Lines: page.Lines, Offset: page.Offset})
}

func (s *apiServer) recordSize(ctx context.Context, record dataset.AudioRecord) (int64, error) {
	if dataset.IsURLLocator(record.StorageLink) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, record.StorageLink, nil)
		if err != nil {
			return 0, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return resp.ContentLength, nil
	}
	key := record.StorageLink
	if key == "" {
		key = dataset.StorageKey(record)
	}
	return s.daemon.store.Head(ctx, key)
}

// parseSelection validates the language/percentage path segments plus the
// filter query params, writing the error response itself on failure.
func (s *apiServer) parseSelection(w http.ResponseWriter, r *http.Request, language, pctRaw string) (dataset.Criteria, float64, bool) {
	criteria, ok := s.parseCriteria(w, r, language)
	if !ok {
		return dataset.Criteria{}, 0, false
	}
	pct, err := strconv.ParseFloat(pctRaw, 64)
	if err != nil || pct <= 0 || pct > 100 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("percentage %q must be a number in (0,100]", pctRaw))
		return dataset.Criteria{}, 0, false
	}
	return criteria, pct, true
}

func (s *apiServer) parseCriteria(w http.ResponseWriter, r *http.Request, language string) (dataset.Criteria, bool) {
	query := r.URL.Query()
	ageGroup := query.Get("age_group")
	if ageGroup == "" {
		ageGroup = query.Get("age")
	}
	criteria, err := dataset.Criteria{
		Language:  language,
		Gender:    query.Get("gender"),
		AgeGroup:  ageGroup,
		Education: query.Get("education"),
		Domain:    query.Get("domain"),
		Category:  query.Get("category"),
		Split:     query.Get("split"),
	}.Normalize()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return dataset.Criteria{}, false
	}
	return criteria, true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
