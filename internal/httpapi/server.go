// Package httpapi exposes the lookup services over REST. Entity routes live
// under /lookups/<table>; all of them require a bearer token unless auth is
// disabled.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/refdata-io/lookupd"
)

// Options configures the HTTP server.
type Options struct {
	JWTSecret      string
	AuthOff        bool
	Dev            bool
	RequestTimeout time.Duration
	Registry       *prometheus.Registry
}

// Server is the REST front end.
type Server struct {
	engine *gin.Engine
	logger lookupd.Logger
}

// NewServer builds the router over the given services. Services are mounted
// under /lookups/<table>, so the country service with table "countries"
// serves /lookups/countries.
func NewServer(services []*lookupd.LookupService, health *lookupd.HealthChecker, logger lookupd.Logger, opts Options) *Server {
	if logger == nil {
		logger = &lookupd.NoOpLogger{}
	}
	if !opts.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	if opts.RequestTimeout > 0 {
		engine.Use(requestTimeout(opts.RequestTimeout))
	}

	engine.GET("/health", func(c *gin.Context) {
		report, err := health.Check(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	if opts.Registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	auth := newAuthenticator(opts.JWTSecret, opts.AuthOff, logger)
	lookups := engine.Group("/lookups", auth.middleware())

	for _, svc := range services {
		registerEntity(lookups, svc, logger)
	}

	return &Server{engine: engine, logger: logger}
}

func registerEntity(root *gin.RouterGroup, svc *lookupd.LookupService, logger lookupd.Logger) {
	desc := svc.Descriptor()
	h := newEntityHandler(svc, logger)
	g := root.Group("/" + desc.Table)

	// Reads are open, anonymous callers included. Writes are gated.
	g.GET("", h.list)
	g.HEAD("", h.list)
	g.POST("", requireScope(lookupd.ScopeCreate), h.create)

	// Device vocabulary endpoints sit above the id routes so the static
	// segments win route matching.
	if desc.Resource == lookupd.DeviceDescriptor.Resource {
		g.GET("/types", h.distinct("type"))
		g.GET("/manufacturers", h.distinct("manufacturer"))
		g.GET("/models", h.distinct("model"))
	}

	g.GET("/:id", h.get)
	g.HEAD("/:id", h.get)
	g.PUT("/:id", requireScope(lookupd.ScopeUpdate), h.update(false))
	g.PATCH("/:id", requireScope(lookupd.ScopeUpdate), h.update(true))
	g.DELETE("/:id", requireScope(lookupd.ScopeDelete), h.remove)
}

func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestLogger(logger lookupd.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Handler returns the underlying http.Handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails or the context is canceled. Shutdown
// drains in-flight requests for up to five seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
