package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/identity"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/middleware"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/ratelimit"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/report"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/tracking"
)

// Config is the configuration for the http server
type Config struct {
	Port           string        `mapstructure:"port"`
	Address        string        `mapstructure:"address"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxUploadMB    int64         `mapstructure:"max_upload_mb"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:         "8080",
		MaxUploadMB:  32,
		ReadTimeout:  time.Minute,
		WriteTimeout: 5 * time.Minute,
	}
}

// Tracker records storefront events.
type Tracker interface {
	Track(ctx context.Context, req tracking.Request) (*tracking.Result, error)
}

// Reporter runs the reporting pipeline.
type Reporter interface {
	Run(ctx context.Context, in *report.Input) (*entity.Report, error)
}

// IdentitySyncer runs one identity merge pass.
type IdentitySyncer interface {
	Sync(ctx context.Context) (*identity.SyncResult, error)
}

// Metrics records request outcomes and serves the scrape endpoint.
type Metrics interface {
	ObserveHTTP(method, route, code string, d time.Duration)
	Handler() http.Handler
}

// Services are the handlers' backends. Nil services answer 503.
type Services struct {
	Tracker  Tracker
	Reports  Reporter
	Identity IdentitySyncer
	Limiter  *ratelimit.MultiKeyLimiter
	JWTAuth  *jwtauth.JWTAuth
	Metrics  Metrics
	Health   func(ctx context.Context) error
}

// Server is the http server
type Server struct {
	hs   *http.Server
	c    *Config
	svc  Services
	done chan struct{}
}

// New creates a new server
func New(config *Config, svc Services) *Server {
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = DefaultConfig().MaxUploadMB
	}
	return &Server{
		c:    config,
		svc:  svc,
		done: make(chan struct{}),
	}
}

// Done returns a channel that is closed when the http server exits
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientIdentifier)
	r.Use(s.cors())
	r.Use(s.observe)

	r.Get("/healthz", s.health)
	if s.svc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.svc.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/track", s.track)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/reports", s.runReport)
			r.Post("/identity/sync", s.syncIdentity)
		})
	})
	return r
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	hsDone := make(chan struct{})

	go func() {
		<-hsDone
		close(s.done)
	}()

	listenerAddr := fmt.Sprintf("%s:%s", s.c.Address, s.c.Port)
	s.hs = &http.Server{
		Addr:         listenerAddr,
		Handler:      s.Handler(),
		ReadTimeout:  s.c.ReadTimeout,
		WriteTimeout: s.c.WriteTimeout,
	}

	go func() {
		slog.Default().InfoContext(ctx, "http listener started", slog.String("addr", listenerAddr))
		err := s.hs.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			slog.Default().InfoContext(ctx, "http server returned")
		} else {
			slog.Default().ErrorContext(ctx, "http server exited with an error", slog.String("err", err.Error()))
		}
		cancel()
		close(hsDone)
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.hs == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.hs.Shutdown(ctx)
}

func (s *Server) cors() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return isOriginAllowed(origin, s.c.AllowedOrigins)
		},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIdHeader},
		ExposedHeaders:   []string{middleware.RequestIdHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

func isOriginAllowed(origin string, allowedOrigins []string) bool {
	// Always allow localhost origins
	if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "https://localhost:") {
		return true
	}
	for _, allowedOrigin := range allowedOrigins {
		if allowedOrigin == "*" || origin == allowedOrigin {
			return true
		}
	}
	return false
}
