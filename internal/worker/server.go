// Package worker implements the keyboard-switching worker: a loopback HTTP
// server that presses key chords on request.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/langswitch/internal/logging"
)

// Response bodies.
const (
	BodyRunning     = "Server is running"
	BodyOK          = "OK"
	BodyMissingKeys = "Error: 'keys' parameter is missing"
)

// DefaultAddr is the address the editor side expects.
const DefaultAddr = "127.0.0.1:8181"

// NewHandler serves /status and /press_shortcut.
func NewHandler(p Presser, logger *logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	h := &handler{presser: p, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", h.status)
	mux.HandleFunc("/press_shortcut", h.press)
	return allowAnyOrigin(mux)
}

type handler struct {
	presser Presser
	logger  *logging.Logger
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, BodyRunning)
}

func (h *handler) press(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("keys")
	if raw == "" {
		writeText(w, http.StatusBadRequest, BodyMissingKeys)
		return
	}
	tokens := strings.Split(raw, ",")

	if err := h.presser.Press(r.Context(), tokens); err != nil {
		h.logger.Error("press shortcut", "keys", raw, "error", err)
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Info("pressed shortcut", "chord", strings.Join(tokens, " + "))
	writeText(w, http.StatusOK, BodyOK)
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = fmt.Fprint(w, body)
}

func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

// Server runs the worker handler on a listener.
type Server struct {
	addr    string
	handler http.Handler
	logger  *logging.Logger
}

// NewServer creates a server for addr.
func NewServer(addr string, p Presser, logger *logging.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{addr: addr, handler: NewHandler(p, logger), logger: logger}
}

// ListenAndServe listens on the configured address until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("worker listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
