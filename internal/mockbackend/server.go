// Package mockbackend is an in-memory implementation of the e-reader backend
// contract for local development and end-to-end tests. Routes are mounted
// from api.Endpoints, so every operation the client can invoke is served.
package mockbackend

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"ereader/internal/api"
	"ereader/internal/platform/health"
	"ereader/internal/platform/logger"
	"ereader/internal/platform/middleware"
	"ereader/pkg/platform/httputil"
)

const (
	defaultTokenTTL = 24 * time.Hour
	maxBodyBytes    = 1 << 20
)

// Server serves the contract.
type Server struct {
	store     *Store
	tokens    *Issuer
	logger    *slog.Logger
	documents map[string]int
	handlers  map[string]http.HandlerFunc
	health    *health.Handler

	mu     sync.Mutex
	faults map[string][]fault
	calls  map[string]int
}

type fault struct {
	status int
	body   string
	delay  time.Duration
}

type config struct {
	secret string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*config)

// WithSecret sets the token signing secret.
func WithSecret(secret string) Option {
	return func(c *config) { c.secret = secret }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(c *config) { c.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New builds a server seeded with the catalog and the demo account.
func New(opts ...Option) (*Server, error) {
	cfg := config{ttl: defaultTokenTTL, now: time.Now, logger: logger.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.secret == "" {
		return nil, fmt.Errorf("mockbackend: signing secret is required")
	}

	s := &Server{
		store:  newStore(cfg.now),
		tokens: NewIssuer(cfg.secret, cfg.ttl, cfg.now),
		logger: cfg.logger,
		faults: make(map[string][]fault),
		calls:  make(map[string]int),
	}
	s.documents = s.store.seed()
	if _, err := s.store.CreateAccount(DemoName, DemoEmail, DemoPassword); err != nil {
		return nil, fmt.Errorf("seed demo account: %w", err)
	}
	s.handlers = s.routes()
	s.health = health.New()
	s.health.RegisterCheck("catalog", s.store.Seeded)
	for _, ep := range api.Endpoints {
		if _, ok := s.handlers[ep.Name]; !ok {
			return nil, fmt.Errorf("mockbackend: no handler for %s", ep.Name)
		}
	}
	return s, nil
}

// Store exposes the data for test setup.
func (s *Server) Store() *Store {
	return s.store
}

// Tokens exposes the issuer so tests can mint credentials.
func (s *Server) Tokens() *Issuer {
	return s.tokens
}

// Inject makes the next call to the named endpoint answer with status and
// body instead of reaching its handler. Injected faults queue up in order.
func (s *Server) Inject(endpoint string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[endpoint] = append(s.faults[endpoint], fault{status: status, body: body})
}

// Delay holds the next call to the named endpoint for d before handling it
// normally.
func (s *Server) Delay(endpoint string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[endpoint] = append(s.faults[endpoint], fault{delay: d})
}

// Calls reports how many requests reached the named endpoint.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

func (s *Server) nextFault(endpoint string) (fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[endpoint]++
	queue := s.faults[endpoint]
	if len(queue) == 0 {
		return fault{}, false
	}
	s.faults[endpoint] = queue[1:]
	return queue[0], true
}

// Handler returns the HTTP handler. API routes live under /api, documents
// under /files and health checks under /health.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
				next.ServeHTTP(w, r)
			})
		})
		for _, ep := range api.Endpoints {
			h := s.instrument(ep.Name, s.handlers[ep.Name])
			if ep.Auth {
				h = middleware.RequireAuth(s.tokens, s.logger)(h)
			}
			r.Method(ep.Method, "/"+ep.Path, h)
		}
	})
	r.Get("/files/{name}", s.handleDocument)
	s.health.Register(r)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.Envelope{Message: "Route not found"})
	})
	return r
}

func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := s.nextFault(endpoint)
		if !ok {
			next(w, r)
			return
		}
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-r.Context().Done():
				return
			}
		}
		if f.status == 0 {
			next(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
	})
}

func (s *Server) routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		api.Health.Name: func(w http.ResponseWriter, _ *http.Request) {
			httputil.WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
		},

		api.Login.Name:        s.handleLogin,
		api.Register.Name:     s.handleRegister,
		api.GoogleLogin.Name:  s.handleGoogleLogin,
		api.ValidateAuth.Name: s.handleValidate,

		api.ListBooks.Name:      s.handleListBooks,
		api.GetBook.Name:        s.handleGetBook,
		api.PopularBooks.Name:   s.handleRanked(api.SortRating),
		api.RecentBooks.Name:    s.handleRanked(api.SortRecent),
		api.ListCategories.Name: s.handleCategories,

		api.GetProfile.Name:          s.handleProfile,
		api.ListReadingActivity.Name: s.handleActivity,

		api.ListLibraries.Name:     s.handleListLibraries,
		api.GetLibrary.Name:        s.handleGetLibrary,
		api.CreateLibrary.Name:     s.handleCreateLibrary,
		api.RenameLibrary.Name:     s.handleRenameLibrary,
		api.DeleteLibrary.Name:     s.handleDeleteLibrary,
		api.AddLibraryBook.Name:    s.handleAddLibraryBook,
		api.RemoveLibraryBook.Name: s.handleRemoveLibraryBook,

		api.SaveReadingState.Name: s.handleSaveReadingState,
		api.GetReadingState.Name:  s.handleGetReadingState,

		api.ListBookmarks.Name:  s.handleListBookmarks,
		api.CreateBookmark.Name: s.handleCreateBookmark,
		api.DeleteBookmark.Name: s.handleDeleteBookmark,

		api.ListReviews.Name:  s.handleListReviews,
		api.CreateReview.Name: s.handleCreateReview,
		api.UpdateReview.Name: s.handleUpdateReview,
		api.DeleteReview.Name: s.handleDeleteReview,
	}
}

// pathID parses a numeric path parameter, writing a 400 envelope when it is
// not one.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		httputil.WriteJSON(w, http.StatusBadRequest,
			httputil.Envelope{Message: fmt.Sprintf("Invalid %s", strings.ToLower(name))})
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
