package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ryanm101/gamelens/internal/db"
	"github.com/ryanm101/gamelens/internal/logging"
	"github.com/ryanm101/gamelens/internal/metadata"
	"github.com/ryanm101/gamelens/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func handleServeCommand(ctx context.Context, _ []string) {
	a := openApp(ctx)
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(a.service, a.db, cfg.GetAssetsDir(), cfg.GetAssetURLPrefix(), logging.Component("server"))

	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      otelhttp.NewHandler(server, "gamelens"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Info("starting server", "addr", srv.Addr, "assets_dir", cfg.GetAssetsDir())
	PrintInfo("GameLens API listening on %s\n", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error("server error", "error", err)
		os.Exit(1)
	}
}

// gameService is the part of metadata.Service the server uses.
type gameService interface {
	Search(ctx context.Context, query string, page, pageSize int) ([]*db.Game, error)
	GetByID(ctx context.Context, id int) (*db.Game, error)
}

// Server handles HTTP requests.
type Server struct {
	games  gameService
	db     *db.DB
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates the API server. Stored cover images under assetsDir are
// served at urlPrefix.
func NewServer(games gameService, database *db.DB, assetsDir, urlPrefix string, logger *slog.Logger) *Server {
	s := &Server{
		games:  games,
		db:     database,
		mux:    http.NewServeMux(),
		logger: logger,
	}
	s.setupRoutes(assetsDir, urlPrefix)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) setupRoutes(assetsDir, urlPrefix string) {
	s.mux.HandleFunc("GET /api/games", s.handleSearch)
	s.mux.HandleFunc("GET /api/games/{id}", s.handleGame)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.Handle("GET "+urlPrefix+"/", http.StripPrefix(urlPrefix+"/", http.FileServer(filesOnly{http.Dir(assetsDir)})))
}

// filesOnly hides directories so the image directory is never listed.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), defaultPage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	pageSize, err := intParam(q.Get("page_size"), defaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page_size")
		return
	}

	games, err := s.games.Search(r.Context(), q.Get("q"), page, pageSize)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"games":     games,
		"page":      page,
		"page_size": pageSize,
	})
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	g, err := s.games.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if err := metrics.UpdateDBMetrics(s.db.Conn()); err != nil {
		s.logger.Warn("failed to update metrics", "error", err)
	}
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	err := s.db.Conn().PingContext(r.Context())
	status := "healthy"
	statusCode := http.StatusOK

	if err != nil {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]string{
		"status": status,
		"db":     fmt.Sprintf("%v", err == nil),
	})
}

// writeServiceError maps a service failure kind to an HTTP status.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, metadata.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, metadata.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, metadata.ErrUpstreamUnavailable):
		s.logger.Warn("upstream unavailable", "error", err)
		writeError(w, http.StatusBadGateway, "upstream game API unavailable")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
