// Package dashboard serves a small HTTP + websocket operator view:
// JSON snapshot, log, inject, and coil-write endpoints, plus a
// websocket feed that pushes a snapshot every second through the same
// Hub pattern the reference fleet uses for its other websocket-backed
// dashboards. Log lines are served by /api/logs only; they are not
// pushed over the websocket.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/tunnelhill/wtprtu/internal/plant"
	"github.com/tunnelhill/wtprtu/internal/process"
	"github.com/tunnelhill/wtprtu/internal/wtplog"
)

// Server is the dashboard's HTTP server and its websocket hub.
type Server struct {
	addr  string
	plant *plant.Plant
	hub   *Hub
	log   *wtplog.Logger
	http  *http.Server
}

// New builds a Server bound to addr, serving data from p.
func New(addr string, p *plant.Plant, logger *wtplog.Logger) *Server {
	s := &Server{
		addr:  addr,
		plant: p,
		hub:   NewHub(logger),
		log:   logger.Named("dashboard"),
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/snapshot", s.getSnapshot).Methods(http.MethodGet)
	router.HandleFunc("/api/coil", s.postCoil).Methods(http.MethodPost)
	router.HandleFunc("/api/inject", s.postInject).Methods(http.MethodPost)
	router.HandleFunc("/api/logs", s.getLogs).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.hub.ServeWS)

	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

// Run starts the HTTP listener, the websocket hub, and a periodic
// snapshot broadcaster as goroutines and returns at once; they stop
// when ctx is cancelled.
func (s *Server) Run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.hub.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		go func() {
			s.log.Infow("dashboard listening", "addr", s.addr)
			if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Errorw("dashboard server error", "err", err)
			}
		}()
		s.broadcastLoop(ctx)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.hub.BroadcastEvent("snapshot", s.plant.Snapshot())
		}
	}
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.plant.Snapshot())
}

func (s *Server) getLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.log.Buffer().Recent())
}

type coilRequest struct {
	Addr  int  `json:"addr"`
	Value bool `json:"value"`
}

func (s *Server) postCoil(w http.ResponseWriter, r *http.Request) {
	var req coilRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.plant.SetCoil(req.Addr, req.Value) {
		http.Error(w, "coil address out of range", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type injectRequestBody struct {
	Kind          string  `json:"kind"`
	PeakTurb      float64 `json:"peak_turb,omitempty"`
	DurationHours float64 `json:"duration_hours,omitempty"`
	Sensor        string  `json:"sensor,omitempty"`
}

func (s *Server) postInject(w http.ResponseWriter, r *http.Request) {
	var body injectRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err := s.plant.Inject(process.InjectRequest{
		Kind:          process.Kind(body.Kind),
		PeakTurb:      body.PeakTurb,
		DurationHours: body.DurationHours,
		Sensor:        body.Sensor,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encoding response: %v", err), http.StatusInternalServerError)
	}
}
