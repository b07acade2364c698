package viewer

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"lootwatch/internal/artifacts"
	"lootwatch/internal/config"
	"lootwatch/internal/logging"
	"lootwatch/internal/store"
	"lootwatch/internal/workflow"
)

//go:embed assets
var assets embed.FS

var pages = template.Must(template.ParseFS(assets, "assets/*.html"))

// ItemSource is the read side of the item store the viewer uses.
type ItemSource interface {
	GetByID(ctx context.Context, id string) (*store.Item, error)
	Latest(ctx context.Context, offset int) (*store.Item, error)
	Random(ctx context.Context) (*store.Item, error)
	List(ctx context.Context, opts store.ListOptions) ([]*store.Item, error)
	Stats(ctx context.Context, maxAttempts int) (store.Stats, error)
}

// StatusFunc reports the current loop state for /api/status.
type StatusFunc func() workflow.StatusSummary

// Server is the item viewer HTTP server.
type Server struct {
	bind        string
	store       ItemSource
	artifacts   *artifacts.Store
	status      StatusFunc
	maxAttempts int
	logger      *slog.Logger

	handler http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// Option customizes a Server.
type Option func(*Server)

// WithStatus exposes workflow status on /api/status.
func WithStatus(fn StatusFunc) Option {
	return func(s *Server) { s.status = fn }
}

// New builds a viewer bound to cfg.Viewer.Bind.
func New(cfg *config.Config, st ItemSource, art *artifacts.Store, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		bind:        cfg.Viewer.Bind,
		store:       st,
		artifacts:   art,
		maxAttempts: cfg.Dispatch.MaxAttempts,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	static, _ := fs.Sub(assets, "assets")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /item/{id}", s.handleItem)
	mux.HandleFunc("GET /random", s.handleRandom)
	mux.HandleFunc("GET /latest/{n}", s.handleLatest)
	mux.HandleFunc("GET /items", s.handleItems)
	mux.HandleFunc("GET /images/items/{file}", s.handleImage)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.Handle("GET /style.css", http.FileServerFS(static))
	s.handler = mux
	return s
}

// Handler returns the viewer routes.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the bind address and serves until ctx is cancelled or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("viewer already started")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("viewer listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.listener = listener
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("viewer server error", logging.Error(err))
		}
	}()
	context.AfterFunc(ctx, s.Stop)

	s.logger.Info("viewer listening",
		logging.String(logging.FieldEventType, "viewer_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting up to five seconds for open requests.
func (s *Server) Stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, "lootwatch item viewer")
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	item, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.storeError(w, err, "item "+id)
		return
	}
	view, err := BuildItemView(item)
	if err != nil {
		s.logger.Warn("item payload unreadable", logging.String(logging.FieldItemID, id), logging.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.renderPage(w, "item", view)
}

func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.Random(r.Context())
	if err != nil {
		s.storeError(w, err, "random item")
		return
	}
	http.Redirect(w, r, "/item/"+item.ID, http.StatusFound)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	var offset int
	if _, err := fmt.Sscan(r.PathValue("n"), &offset); err != nil || offset < 0 {
		http.Error(w, "offset must be a non-negative integer", http.StatusBadRequest)
		return
	}
	item, err := s.store.Latest(r.Context(), offset)
	if err != nil {
		s.storeError(w, err, "latest item")
		return
	}
	http.Redirect(w, r, "/item/"+item.ID, http.StatusFound)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.List(r.Context(), store.ListOptions{Limit: 100, State: r.URL.Query().Get("state")})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.renderPage(w, "items", items)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(r.PathValue("file"), artifacts.Extension)
	if !ok || artifacts.ValidateID(id) != nil || s.artifacts == nil {
		http.NotFound(w, r)
		return
	}
	data, err := s.artifacts.Read(id)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data any) {
	var buf strings.Builder
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render page failed", logging.String("page", name), logging.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(buf.String()))
}

func (s *Server) storeError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "could not find "+what, http.StatusNotFound)
		return
	}
	s.logger.Error("viewer store query failed", logging.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
