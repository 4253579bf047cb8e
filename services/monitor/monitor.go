// Package monitor serves the live state of the control plane over HTTP: the
// most recent classification as JSON and a WebSocket stream of inertial
// samples. Read side only; it never drives the device.
package monitor

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"motionsense-go/bus"
	"motionsense-go/types"
)

type Service struct {
	addr    string
	samples *bus.Channel[types.InertialSample]

	mu         sync.RWMutex
	lastResult types.ClassificationResult
	haveResult bool

	upgrader websocket.Upgrader
}

// New creates a monitor for the given listen address. The results channel is
// observed inline (the listener only stores the latest value); sample
// streaming uses a per-connection queued subscription.
func New(addr string,
	samples *bus.Channel[types.InertialSample],
	results *bus.Channel[types.ClassificationResult]) *Service {

	s := &Service{addr: addr, samples: samples}
	results.AddListener(func(r *types.ClassificationResult) {
		s.mu.Lock()
		s.lastResult = *r
		s.haveResult = true
		s.mu.Unlock()
	})
	return s
}

// Handler returns the HTTP mux, exposed separately for tests.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/classification", s.handleClassification)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start launches the HTTP server and shuts it down when ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shctx)
	}()

	go func() {
		log.Printf("monitor: listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("monitor: server error: %v", err)
		}
	}()
	return nil
}

func (s *Service) handleClassification(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.haveResult {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.lastResult); err != nil {
		log.Printf("monitor: json encode error: %v", err)
	}
}

func (s *Service) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := s.samples.Subscribe(32)
	defer sub.Unsubscribe()

	for sample := range sub.Channel() {
		if err := conn.WriteJSON(sample); err != nil {
			return // client went away
		}
	}
}
