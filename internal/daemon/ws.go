package daemon

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voxport/internal/api"
	"voxport/internal/jobs"
	"voxport/internal/logging"
)

const statusPollInterval = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is token-guarded; origin checks add nothing for non-browser
	// clients and block the dashboard during local development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleJobSocket streams job status snapshots over a websocket. The store
// is polled once per second and a snapshot is sent only when it changed.
// The socket closes after a terminal status or when the job disappears;
// closing the socket never cancels the job.
func (s *apiServer) handleJobSocket(w http.ResponseWriter, r *http.Request, id string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	// Reads are discarded; a read error is the client hanging up.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	var last *api.JobStatus
	for {
		job, err := s.daemon.jobs.Get(r.Context(), id)
		if errors.Is(err, jobs.ErrNotFound) {
			_ = conn.WriteJSON(api.ErrorResponse{Error: "job not found"})
			writeClose(conn, websocket.ClosePolicyViolation, "job not found")
			return
		}
		if err != nil {
			s.log().Error("poll job for websocket", logging.Error(err),
				logging.String(logging.FieldJobID, id))
			writeClose(conn, websocket.CloseInternalServerErr, "status poll failed")
			return
		}

		snapshot := api.FromJob(job)
		if last == nil || snapshot != *last {
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
			last = &snapshot
		}
		if job.Status.Terminal() {
			writeClose(conn, websocket.CloseNormalClosure, string(job.Status))
			return
		}

		select {
		case <-ticker.C:
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
