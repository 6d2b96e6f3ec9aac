// Package http serves the statement form, its results and the calculation
// history as server-rendered HTML.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	applog "nebenkosten/internal/log"
	"nebenkosten/internal/middleware/ratelimit"
	"nebenkosten/internal/middleware/security"
	"nebenkosten/internal/middleware/trace"
	"nebenkosten/internal/services"
	appweb "nebenkosten/web"
)

const readyTimeout = 2 * time.Second

// Options are the optional collaborators of a Server.
type Options struct {
	Logger *applog.Logger
	// Ready reports whether the backing stores are usable. Nil means always ready.
	Ready          func(context.Context) error
	RateLimit      ratelimit.Config
	TrustedProxies []string
}

type Server struct {
	http.Server
	templates *template.Template
	svc       *services.CalculationService
	ready     func(context.Context) error

	logger      *applog.Logger
	access      *applog.StructuredLogger
	limiter     *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	shutdownOne sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.CalculationService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentHTTP})
	}

	s := &Server{
		svc:      svc,
		ready:    opts.Ready,
		logger:   logger,
		access:   applog.NewStructuredLogger(logger),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	page := func(h http.HandlerFunc) http.Handler { return security.NoStore(h) }
	mux.Handle("GET /{$}", page(s.handleIndex))
	mux.Handle("POST /calculate", page(s.handleCalculate))
	mux.Handle("POST /reset", page(s.handleReset))
	mux.Handle("POST /history/clear", page(s.handleClearHistory))
	mux.Handle("POST /history/{n}/load", page(s.handleLoadHistory))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited, http.MethodPost)(handler)
	handler = s.flagSuspicious(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOne.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				applog.FieldClientIP, s.detector.ExtractClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Zu viele Anfragen. Bitte in einer Minute erneut versuchen.").Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().BodyText("ok").Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		ErrorResponse(http.StatusServiceUnavailable, "templates not loaded").Write(w)
		return
	}
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			NewResponse().Status(http.StatusServiceUnavailable).BodyText("not ready").Write(w)
			return
		}
	}
	NewResponse().BodyText("ready").Write(w)
}
