package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/vulnsight/vulnsight/internal/storage"
	"github.com/vulnsight/vulnsight/internal/version"
	"github.com/vulnsight/vulnsight/web"
)

// Server is the dashboard: a JSON API over the scan store plus an HTML
// history page.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     *Config
	store      storage.Store
	jobs       *JobManager
	hub        *WebSocketHub
}

// Config holds server configuration
type Config struct {
	Listen         string
	AllowedOrigins []string
	Debug          bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080", // localhost only by default
		AllowedOrigins: []string{"http://localhost:8080", "http://127.0.0.1:8080"},
	}
}

// New creates a server over store. factory builds the runner for scans
// started through the API.
func New(cfg *Config, store storage.Store, factory ScannerFactory) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = DefaultConfig().AllowedOrigins
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	tmpl, err := web.Dashboard(template.FuncMap{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard templates: %w", err)
	}

	s := &Server{
		router: gin.New(),
		config: cfg,
		store:  store,
		jobs:   NewJobManager(factory),
		hub:    NewWebSocketHub(),
	}
	s.jobs.OnChange(s.hub.PublishJob)
	s.router.SetHTMLTemplate(tmpl)
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Jobs returns the background scan manager.
func (s *Server) Jobs() *JobManager {
	return s.jobs
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())
	s.router.Use(securityHeaders())
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:  s.config.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}))
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// requestLogger prints one colored line per API request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if !strings.HasPrefix(path, "/api/") {
			return
		}
		code := c.Writer.Status()
		paint := color.New(color.FgGreen)
		if code >= 400 {
			paint = color.New(color.FgRed)
		} else if code >= 300 {
			paint = color.New(color.FgYellow)
		}
		fmt.Printf("%s %-6s %-50s %15s %10s\n",
			paint.Sprintf("[%d]", code), c.Request.Method, path, c.ClientIP(),
			time.Since(start).Round(time.Microsecond))
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/", s.dashboard)

	api := s.router.Group("/api")
	{
		api.GET("/version", s.getVersion)

		scans := api.Group("/scans")
		{
			scans.GET("", s.listScans)
			scans.POST("", s.startScan)
			scans.GET("/:id", s.getScan)
			scans.GET("/:id/report.html", s.getReportHTML)
			scans.GET("/:id/report.pdf", s.getReportPDF)
		}

		api.GET("/jobs", s.listJobs)
		api.GET("/jobs/:id", s.getJob)
		api.GET("/ws", s.handleWebSocket)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully and
// interrupts running scans.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Println("[*] VulnSight Dashboard")
	fmt.Printf("    Version: %s\n", version.Version)
	fmt.Printf("    Address: http://%s\n\n", s.config.Listen)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		s.jobs.Close()
		return err
	case <-ctx.Done():
		fmt.Println("\n[*] Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.jobs.Close()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("[*] Server stopped")
	return nil
}
