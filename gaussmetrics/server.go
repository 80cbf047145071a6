package gaussmetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opengauss-go/gaussconn/gausspool"
)

// PoolSource names and reports Stats for every live pool this admin
// server should expose under /pools/{name}.
type PoolSource func() map[string]*gausspool.Pool

// Server is the admin HTTP endpoint: /metrics (Prometheus) plus a small
// /pools status API. Grounded on
// JeelKantaria-db-bouncer/internal/api/server.go's mux.Router-based
// Server, trimmed to this module's scope (no tenant CRUD, no dashboard).
type Server struct {
	collector *Collector
	pools     PoolSource
	http      *http.Server
}

// NewServer wires a Collector and a PoolSource into a router.
func NewServer(collector *Collector, pools PoolSource) *Server {
	return &Server{collector: collector, pools: pools}
}

// Start begins serving on addr (e.g. "0.0.0.0:9187") in a background
// goroutine.
func (s *Server) Start(addr string) {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(s.collector.Registry, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/pools", s.listPools).Methods("GET")
	r.HandleFunc("/pools/{name}", s.poolStats).Methods("GET")

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		_ = s.http.ListenAndServe()
	}()
}

// Stop gracefully shuts the admin server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) listPools(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]gausspool.Stats)
	for name, p := range s.pools() {
		stats := p.Stats()
		out[name] = stats
		s.collector.SetPoolStats(name, stats.Idle, stats.Busy)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) poolStats(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	p, ok := s.pools()[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("pool %q not found", name)})
		return
	}
	stats := p.Stats()
	s.collector.SetPoolStats(name, stats.Idle, stats.Busy)
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
