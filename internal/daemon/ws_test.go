package daemon_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxport/internal/api"
	"voxport/internal/jobs"
)

func dialSocket(t *testing.T, td *testDaemon, id string) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://%s/api/exports/%s/ws", td.daemon.APIAddr(), id)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSocketStreamsUntilTerminal(t *testing.T) {
	td := startDaemon(t)
	td.seed(t, "hausa", 8)

	var submitted api.ExportSubmitted
	if code := postJSON(t, td.baseURL+"/api/exports/hausa/100", &submitted); code != http.StatusAccepted {
		t.Fatalf("submit code = %d", code)
	}

	conn := dialSocket(t, td, submitted.JobID)
	conn.SetReadDeadline(time.Now().Add(20 * time.Second))

	var snapshots []api.JobStatus
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			// Some close paths surface as an unexpected EOF after the close
			// frame; the collected snapshots decide the outcome.
			break
		}
		var snapshot api.JobStatus
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			t.Fatalf("unmarshal snapshot: %v", err)
		}
		snapshots = append(snapshots, snapshot)
		if snapshot.Status == string(jobs.StatusReady) || snapshot.Status == string(jobs.StatusFailed) {
			break
		}
	}

	if len(snapshots) == 0 {
		t.Fatal("no snapshots received")
	}
	final := snapshots[len(snapshots)-1]
	if final.Status != string(jobs.StatusReady) {
		t.Fatalf("final status = %q (%s)", final.Status, final.ErrorMessage)
	}
	if final.ProgressPct != 100 {
		t.Fatalf("final progress = %d", final.ProgressPct)
	}
	for i := 1; i < len(snapshots); i++ {
		if snapshots[i] == snapshots[i-1] {
			t.Fatalf("snapshot %d repeated without change", i)
		}
	}
}

func TestSocketUnknownJob(t *testing.T) {
	td := startDaemon(t)

	conn := dialSocket(t, td, "no-such-job")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var body api.ErrorResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Error != "job not found" {
		t.Fatalf("error = %q", body.Error)
	}

	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("socket should close after the not-found payload")
	}
}
