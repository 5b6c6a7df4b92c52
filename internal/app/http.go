package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tturner/cipadapter/internal/logging"
)

// httpBridge exposes read-only status endpoints over the connection and
// assembly state App tracks (grounded on the teacher pack's warlogix
// www.NewRouter, trimmed from its full session-authenticated web UI to two
// unauthenticated JSON status endpoints — this adapter has no operator
// accounts to authenticate).
type httpBridge struct {
	addr   string
	app    *App
	logger *logging.Logger
	srv    *http.Server
}

func newHTTPBridge(addr string, app *App, logger *logging.Logger) *httpBridge {
	return &httpBridge{addr: addr, app: app, logger: logger}
}

func (b *httpBridge) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", b.handleHealth)
	r.Get("/connections", b.handleConnections)
	r.Get("/assemblies/{instance}", b.handleAssembly)
	return r
}

func (b *httpBridge) start() {
	b.srv = &http.Server{
		Addr:         b.addr,
		Handler:      b.router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		if err := b.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			b.logger.Error("http: serve %s: %v", b.addr, err)
		}
	}()
	b.logger.Info("status endpoint listening on %s", b.addr)
}

func (b *httpBridge) stop() {
	if b.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = b.srv.Shutdown(ctx)
}

func (b *httpBridge) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (b *httpBridge) handleConnections(w http.ResponseWriter, r *http.Request) {
	b.app.mu.RLock()
	connsFn := b.app.connsFn
	b.app.mu.RUnlock()
	if connsFn == nil {
		writeJSON(w, []ConnectionSummary{})
		return
	}
	writeJSON(w, connsFn())
}

func (b *httpBridge) handleAssembly(w http.ResponseWriter, r *http.Request) {
	instance, err := parseUint16(chi.URLParam(r, "instance"))
	if err != nil {
		http.Error(w, "invalid instance", http.StatusBadRequest)
		return
	}

	b.app.mu.RLock()
	assemblyFn := b.app.assemblyFn
	b.app.mu.RUnlock()
	if assemblyFn == nil {
		http.NotFound(w, r)
		return
	}
	data, ok := assemblyFn(instance)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, struct {
		Instance uint16 `json:"instance"`
		Data     []byte `json:"data"`
	}{Instance: instance, Data: data})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseUint16(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}
