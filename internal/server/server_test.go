package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"videoinsight/internal/api"
	"videoinsight/internal/broadcast"
	"videoinsight/internal/config"
	"videoinsight/internal/history"
	"videoinsight/internal/logging"
	"videoinsight/internal/server"
	"videoinsight/internal/task"
	"videoinsight/internal/transcription"
)

type stubBackend struct{ ready bool }

func (b stubBackend) Ready() bool { return b.ready }

func (b stubBackend) Snapshot() transcription.Snapshot {
	state := transcription.StateUnloaded
	if b.ready {
		state = transcription.StateReady
	}
	return transcription.Snapshot{State: state, Model: "base"}
}

type stubSubmitter struct {
	mu    sync.Mutex
	tasks []task.Task
	err   error
}

func (s *stubSubmitter) Submit(_ context.Context, t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, t)
	return nil
}

type stubHistory struct {
	runs  []history.Run
	limit int
}

func (h *stubHistory) List(_ context.Context, limit int) ([]history.Run, error) {
	h.limit = limit
	return h.runs, nil
}

func newTestServer(t *testing.T, deps server.Deps) (*httptest.Server, *broadcast.Hub) {
	t.Helper()
	if deps.Hub == nil {
		deps.Hub = broadcast.NewHub(logging.NewNop())
	}
	if deps.Config == nil {
		cfg := config.Default()
		cfg.Templates = config.DefaultTemplates()
		deps.Config = &cfg
	}
	srv := server.New("127.0.0.1:0", deps, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, deps.Hub
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) broadcast.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg broadcast.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWebSocketPingStatusAndMalformed(t *testing.T) {
	ts, _ := newTestServer(t, server.Deps{Backend: stubBackend{ready: true}})
	conn := dialWS(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != broadcast.TypePong {
		t.Fatalf("expected pong, got %q", msg.Type)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status"}`)); err != nil {
		t.Fatalf("write status: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != broadcast.TypeStatus || msg.BackendReady == nil || !*msg.BackendReady {
		t.Fatalf("unexpected status reply: %+v", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != broadcast.TypeError {
		t.Fatalf("expected error reply, got %q", msg.Type)
	}
}

func TestWebSocketReceivesBroadcasts(t *testing.T) {
	ts, hub := newTestServer(t, server.Deps{})
	first := dialWS(t, ts)
	second := dialWS(t, ts)
	waitFor(t, func() bool { return hub.Len() == 2 })

	delivered := hub.Broadcast(context.Background(), broadcast.ProgressMessage("t1", "processing", 40, "transcribing"))
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}
	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		if msg.Type != broadcast.TypeProgress || msg.TaskID != "t1" || msg.ProgressValue() != 40 {
			t.Fatalf("unexpected broadcast: %+v", msg)
		}
	}
}

func TestWebSocketDisconnectUnsubscribes(t *testing.T) {
	ts, hub := newTestServer(t, server.Deps{})
	conn := dialWS(t, ts)
	waitFor(t, func() bool { return hub.Len() == 1 })

	_ = conn.Close()
	waitFor(t, func() bool { return hub.Len() == 0 })
}

func TestSubmitTask(t *testing.T) {
	submitter := &stubSubmitter{}
	ts, _ := newTestServer(t, server.Deps{Submitter: submitter})

	body := `{"source":"https://example.com/clip.mp4","title":"clip","templateId":"summary"}`
	resp, err := http.Post(ts.URL+"/api/tasks", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var payload api.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.TaskID == "" || payload.Status != "pending" {
		t.Fatalf("unexpected response: %+v", payload)
	}
	if len(submitter.tasks) != 1 {
		t.Fatalf("expected one submitted task, got %d", len(submitter.tasks))
	}
	got := submitter.tasks[0]
	if got.ID != payload.TaskID || got.Type != task.TypeURL || got.TemplatePrompt == "" {
		t.Fatalf("unexpected task: %+v", got)
	}
}

func TestSubmitTaskRejectsBadInput(t *testing.T) {
	submitter := &stubSubmitter{}
	ts, _ := newTestServer(t, server.Deps{Submitter: submitter})

	for _, body := range []string{`{`, `{"source":""}`} {
		resp, err := http.Post(ts.URL+"/api/tasks", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, resp.StatusCode)
		}
	}

	submitter.err = errors.New("task t1 already running")
	resp, err := http.Post(ts.URL+"/api/tasks", "application/json", bytes.NewBufferString(`{"id":"t1","source":"/tmp/a.mp4"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestSubmitWithoutSubmitter(t *testing.T) {
	ts, _ := newTestServer(t, server.Deps{})
	resp, err := http.Post(ts.URL+"/api/tasks", "application/json", strings.NewReader(`{"source":"/tmp/a.mp4"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestStatusFallsBackToBackend(t *testing.T) {
	ts, _ := newTestServer(t, server.Deps{Backend: stubBackend{ready: true}})
	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running || !status.Backend.Ready || status.Backend.Model != "base" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	hist := &stubHistory{runs: []history.Run{{
		TaskID:    "t1",
		Type:      task.TypeFile,
		Source:    "/videos/a.mp4",
		Status:    task.StatusCompleted,
		Progress:  100,
		CreatedAt: now,
		UpdatedAt: now,
	}}}
	ts, _ := newTestServer(t, server.Deps{History: hist})

	resp, err := http.Get(ts.URL + "/api/history?limit=5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var payload api.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hist.limit != 5 {
		t.Fatalf("expected limit 5, got %d", hist.limit)
	}
	if len(payload.Runs) != 1 || payload.Runs[0].TaskID != "t1" || payload.Runs[0].Status != "completed" {
		t.Fatalf("unexpected history: %+v", payload.Runs)
	}
}

func TestTemplatesEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, server.Deps{})
	resp, err := http.Get(ts.URL + "/api/templates")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var templates []api.TemplateEntry
	if err := json.NewDecoder(resp.Body).Decode(&templates); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(templates) != len(config.DefaultTemplates()) {
		t.Fatalf("expected %d templates, got %d", len(config.DefaultTemplates()), len(templates))
	}
}

func TestLogsEndpointFiltersByTask(t *testing.T) {
	stream := logging.NewStreamHub(16)
	stream.Publish(logging.LogEvent{Message: "one", TaskID: "a"})
	stream.Publish(logging.LogEvent{Message: "two", TaskID: "b"})
	ts, _ := newTestServer(t, server.Deps{Logs: stream})

	resp, err := http.Get(ts.URL + "/api/logs?task=b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var payload api.LogStreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Events) != 1 || payload.Events[0].Message != "two" {
		t.Fatalf("unexpected events: %+v", payload.Events)
	}
	if payload.Next != 2 {
		t.Fatalf("expected next cursor 2, got %d", payload.Next)
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, server.Deps{})
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := server.New("127.0.0.1:0", server.Deps{Hub: broadcast.NewHub(nil)}, logging.NewNop())
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	srv.Stop()
}
