package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const corsAllowedHeaders = "authorization, x-client-info, apikey, content-type"

// Server is the HTTP redirect surface. Any method on any path is
// accepted; the last non-empty path segment is the lookup key.
type Server struct {
	port          string
	resolver      *Resolver
	collector     *Collector
	countryHeader string
	cityHeader    string
}

func NewServer(port string, resolver *Resolver, collector *Collector, countryHeader, cityHeader string) *Server {
	return &Server{
		port:          port,
		resolver:      resolver,
		collector:     collector,
		countryHeader: countryHeader,
		cityHeader:    cityHeader,
	}
}

// Handler builds the request handler; exported so tests can drive it
// through httptest. A ServeMux is deliberately not used: it would
// canonicalize paths like "//x" with its own redirect, and every
// method on every path belongs to the same handler anyway.
func (s *Server) Handler() http.Handler {
	return s.recoverPanics(s.handleRedirect)
}

func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}
	errChan := make(chan error, 1)
	go func() { errChan <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) recoverPanics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in redirect handler", "path", r.URL.Path, "panic", rec)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)
	if r.Method == http.MethodOptions {
		// Preflight is answered before anything touches storage.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	code := lastSegment(r.URL.Path)
	if code == "" {
		http.Error(w, "Short code is missing", http.StatusBadRequest)
		return
	}

	link, err := s.resolver.Resolve(r.Context(), code)
	if err != nil {
		// Expired and unknown share a status so probing clients
		// cannot learn link lifecycle; logs keep them apart.
		if errors.Is(err, ErrExpired) {
			slog.Info("link expired", "code", code)
			http.Error(w, "URL has expired", http.StatusNotFound)
			return
		}
		http.Error(w, "URL not found", http.StatusNotFound)
		return
	}

	visit := Visit{
		LinkID:    link.ID,
		Country:   r.Header.Get(s.countryHeader),
		City:      r.Header.Get(s.cityHeader),
		IP:        clientIP(r.Header.Get("X-Forwarded-For")),
		UserAgent: r.UserAgent(),
	}
	// Detached on purpose: the redirect never waits on analytics, and
	// the collector logs and discards its own failures.
	go s.collector.Collect(visit)

	w.Header().Set("Location", link.Destination)
	w.WriteHeader(http.StatusMovedPermanently)
}

func writeCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
}

func lastSegment(path string) string {
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

func clientIP(forwardedFor string) string {
	first, _, _ := strings.Cut(forwardedFor, ",")
	return strings.TrimSpace(first)
}
