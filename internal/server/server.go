// Package server is the browser renderer: an HTML form with a card layout,
// a websocket session that streams view-state changes, and a JSON API.
package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"github.com/ory/graceful"

	"github.com/AmanuelCh/whois-domain-lookup/internal/lookup"
	"github.com/AmanuelCh/whois-domain-lookup/internal/output"
	"github.com/AmanuelCh/whois-domain-lookup/pkg/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Delegator runs the live NS/SOA check for a domain
type Delegator interface {
	Delegation(ctx context.Context, domain string) *models.Delegation
}

// Config configures the HTTP server
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	StaleGuard      bool
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger logr.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

// WithDelegator enables the live delegation card after a successful lookup
func WithDelegator(d Delegator) Option {
	return func(s *Server) {
		s.delegator = d
	}
}

// Server serves the lookup page, the websocket session and the JSON API
type Server struct {
	config    Config
	provider  lookup.Provider
	delegator Delegator
	log       logr.Logger
	metrics   *metricSet
	templates *template.Template
	upgrader  websocket.Upgrader
	engine    *gin.Engine
}

// New creates a server. Every lookup gets its own controller backed by
// provider.
func New(config Config, provider lookup.Provider, opts ...Option) *Server {
	s := &Server{
		config:    config,
		provider:  provider,
		log:       logr.Discard(),
		metrics:   newMetricSet(),
		templates: template.Must(template.New("").ParseFS(templateFS, "templates/*.html")),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	router.SetHTMLTemplate(s.templates)

	router.GET("/", s.handleIndex)
	router.GET("/ws", s.handleSession)
	router.GET("/metrics", s.handleMetrics)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.GET("/whois", s.handleWhois)
	}
	return router
}

// ListenAndServe serves until SIGINT or SIGTERM, then shuts down gracefully
func (s *Server) ListenAndServe() error {
	srv := graceful.WithDefaults(&http.Server{
		Addr:    s.config.Addr,
		Handler: s.engine,
	})

	s.log.Info("Starting server", "addr", s.config.Addr)
	err := graceful.Graceful(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, s.shutdown(srv))
	if err != nil {
		return err
	}
	s.log.Info("Server stopped")
	return nil
}

// shutdown drains srv within the configured timeout. The deadline graceful
// passes in is replaced so each server keeps its own.
func (s *Server) shutdown(srv *http.Server) func(context.Context) error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = graceful.DefaultShutdownTimeout
	}
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// newController creates a controller wired to the server's logger and metrics
func (s *Server) newController(log logr.Logger) *lookup.Controller {
	opts := []lookup.Option{
		lookup.WithLogger(log),
		lookup.WithReporter(s.metrics.observe),
	}
	if s.config.StaleGuard {
		opts = append(opts, lookup.WithStaleGuard())
	}
	return lookup.New(s.provider, opts...)
}

// lookupOnce runs one submission to completion
func (s *Server) lookupOnce(ctx context.Context, domain string) *output.View {
	controller := s.newController(s.log)
	state := <-controller.Submit(ctx, domain)

	view := &output.View{Snapshot: controller.Snapshot()}
	if success, ok := state.(lookup.Success); ok && s.delegator != nil {
		view.Delegation = s.delegator.Delegation(ctx, success.Record.DomainName)
	}
	return view
}

// page is the template data for the index page and the result fragment
type page struct {
	Phase  lookup.Phase
	Input  string
	Domain string
	Error  string
	Title  string
	Cards  []output.Card
}

func newPage(view *output.View) page {
	frame := view.Snapshot.Frame()
	p := page{
		Phase:  frame.Phase,
		Input:  frame.Input,
		Domain: frame.Domain,
	}
	if frame.Error != nil {
		p.Error = frame.Error.Message
	}
	if frame.Record != nil {
		p.Title = frame.Record.DomainName
		p.Cards = output.Cards(frame.Record)
		if view.Delegation != nil {
			p.Cards = append(p.Cards, output.DelegationCard(view.Delegation))
		}
	}
	return p
}

// renderFragment renders a named template to a string
func (s *Server) renderFragment(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
