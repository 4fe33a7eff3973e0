// Package app wires the public site, the admin API and the live update
// channels onto one HTTP server.
package app

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/klabast/wb-services/plaza/internal/admin"
	"github.com/klabast/wb-services/plaza/internal/broker"
	"github.com/klabast/wb-services/plaza/internal/live"
	"github.com/klabast/wb-services/plaza/internal/render"
	"github.com/klabast/wb-services/plaza/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultViewTTL bounds how long a rendered view is reused
const DefaultViewTTL = 5 * time.Minute

// Server serves the public pages, the admin API and the live streams
type Server struct {
	events     *store.EventStore
	controller *admin.Controller
	gate       *admin.Gate
	renderer   *render.Renderer
	broker     *broker.Broker
	sse        *live.Broadcaster
	hub        *live.Hub
	views      *ViewCache
	templates  *template.Template
	logger     *zerolog.Logger
	now        func() time.Time
	metrics    bool
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock replaces time.Now, used for export names and the feed window
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithMetrics exposes /metrics
func WithMetrics(enabled bool) Option {
	return func(s *Server) { s.metrics = enabled }
}

// WithViewTTL sets how long rendered views are cached
func WithViewTTL(ttl time.Duration) Option {
	return func(s *Server) { s.views = NewViewCache(ttl) }
}

// New assembles a server. The event store must publish on b so that saves
// and external changes reach the controller and the live streams.
func New(events *store.EventStore, controller *admin.Controller, gate *admin.Gate, renderer *render.Renderer, b *broker.Broker, opts ...Option) *Server {
	nop := zerolog.Nop()
	s := &Server{
		events:     events,
		controller: controller,
		gate:       gate,
		renderer:   renderer,
		broker:     b,
		views:      NewViewCache(DefaultViewTTL),
		logger:     &nop,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.templates = template.Must(template.New("").
		Funcs(template.FuncMap{"bookingURL": bookingURL}).
		ParseFS(templateFS, "templates/*.html"))
	s.sse = live.NewBroadcaster(s.logger, s.snapshot)
	s.hub = live.NewHub(s.logger, s.snapshot)

	// the controller must see external changes before views are rebuilt
	b.Subscribe(controller.Subscriber())
	b.Subscribe(broker.NewFunc(s.onChange))
	return s
}

// Handler returns the routed handler with the session middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /events", s.handleEventsPage)
	mux.HandleFunc("GET /events.ics", s.handleSubscribe)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.Handle("GET /api/events/stream", s.sse)
	mux.Handle("GET /api/events/ws", s.hub)
	mux.HandleFunc("POST /api/contact", s.handleContact)

	mux.HandleFunc("GET /admin", s.handleAdminPage)
	mux.HandleFunc("POST /admin/login", s.handleLogin)
	mux.HandleFunc("POST /admin/logout", s.handleLogout)
	mux.HandleFunc("GET /admin/session", s.handleSession)

	mux.HandleFunc("GET /api/admin/events", s.requireAdmin(s.handleList))
	mux.HandleFunc("POST /api/admin/events", s.requireAdmin(s.handleCreate))
	mux.HandleFunc("GET /api/admin/events/{id}", s.requireAdmin(s.handleGet))
	mux.HandleFunc("PUT /api/admin/events/{id}", s.requireAdmin(s.handleUpdate))
	mux.HandleFunc("DELETE /api/admin/events/{id}", s.requireAdmin(s.handleDelete))
	mux.HandleFunc("GET /api/admin/export", s.requireAdmin(s.handleExport))
	mux.HandleFunc("POST /api/admin/clear", s.requireAdmin(s.handleClear))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return s.withSession(mux)
}

// Start runs the broker, the live streams and the storage watch until ctx
// is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.broker.Run(ctx)
	go s.sse.Run(ctx)
	go s.hub.Run(ctx)

	if err := s.events.Watch(ctx); err != nil {
		return err
	}
	return nil
}

// ListenAndServe starts the background loops and serves on addr until ctx
// is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting The Plaza events server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info().Msg("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

// bookingURL marks tel: links as safe; html/template would otherwise
// replace them since it only trusts http, https and mailto.
func bookingURL(u string) template.URL {
	if strings.HasPrefix(u, "tel:") {
		return template.URL(u)
	}
	return "#"
}

// view returns the rendered collection, from cache when possible
func (s *Server) view(ctx context.Context, preview bool) render.View {
	if v, ok := s.views.Get(preview); ok {
		return v
	}
	gen := s.views.Generation()
	v := s.renderer.Render(s.events.Load(ctx), render.Options{Preview: preview})
	s.views.SetIfCurrent(preview, v, gen)
	return v
}

// snapshot is the first message every live client receives
func (s *Server) snapshot() live.Message {
	return live.Message{Type: "events", Data: s.view(context.Background(), false)}
}

// onChange drops cached views and pushes the freshly loaded full view to
// live clients.
func (s *Server) onChange(e broker.Event) error {
	s.views.Invalidate()
	msg := live.Message{Type: "events", ID: string(e.Type), Data: s.view(context.Background(), false)}
	s.sse.Broadcast(msg)
	s.hub.Broadcast(msg)
	return nil
}
