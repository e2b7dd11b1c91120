package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tunnelhill/wtprtu/internal/config"
	"github.com/tunnelhill/wtprtu/internal/plant"
	"github.com/tunnelhill/wtprtu/internal/registers"
	"github.com/tunnelhill/wtprtu/internal/wtplog"
)

func newTestServer(t *testing.T) (*Server, *plant.Plant, func()) {
	t.Helper()
	logger := wtplog.New(wtplog.Options{})
	p := plant.New(config.Default(), logger)
	s := New("127.0.0.1:0", p, logger)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	p.Run(ctx, &wg)

	return s, p, func() {
		cancel()
		wg.Wait()
	}
}

func TestGetSnapshotReturnsJSON(t *testing.T) {
	s, _, stop := newTestServer(t)
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	w := httptest.NewRecorder()
	s.getSnapshot(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("expected valid JSON body: %v", err)
	}
}

func TestPostCoilValid(t *testing.T) {
	s, p, stop := newTestServer(t)
	defer stop()

	payload, _ := json.Marshal(coilRequest{Addr: registers.CoBwCmd, Value: true})
	req := httptest.NewRequest(http.MethodPost, "/api/coil", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	s.postCoil(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if !p.Registers().Coils()[registers.CoBwCmd] {
		t.Fatal("expected coil write to take effect")
	}
}

func TestPostCoilOutOfRange(t *testing.T) {
	s, _, stop := newTestServer(t)
	defer stop()

	payload, _ := json.Marshal(coilRequest{Addr: registers.NumCoils + 5, Value: true})
	req := httptest.NewRequest(http.MethodPost, "/api/coil", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	s.postCoil(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPostCoilMalformedBody(t *testing.T) {
	s, _, stop := newTestServer(t)
	defer stop()

	req := httptest.NewRequest(http.MethodPost, "/api/coil", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	s.postCoil(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestPostInjectValid(t *testing.T) {
	s, _, stop := newTestServer(t)
	defer stop()

	payload, _ := json.Marshal(injectRequestBody{Kind: "rain", PeakTurb: 500})
	req := httptest.NewRequest(http.MethodPost, "/api/inject", bytes.NewReader(payload))
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.postInject(w, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for postInject")
	}

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPostInjectInvalidKind(t *testing.T) {
	s, _, stop := newTestServer(t)
	defer stop()

	payload, _ := json.Marshal(injectRequestBody{Kind: "not-a-real-kind"})
	req := httptest.NewRequest(http.MethodPost, "/api/inject", bytes.NewReader(payload))
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.postInject(w, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for postInject")
	}

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid injection kind, got %d", w.Code)
	}
}

func TestGetLogsReturnsEntries(t *testing.T) {
	s, _, stop := newTestServer(t)
	defer stop()
	s.log.Info("test log line")

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	w := httptest.NewRecorder()
	s.getLogs(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var entries []wtplog.Entry
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatalf("expected valid JSON array: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one log entry")
	}
}
