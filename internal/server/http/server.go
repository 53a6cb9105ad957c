// Package httpserver exposes the QuoteReality REST API over gin.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/quotereality/internal/auth"
	"github.com/and161185/quotereality/internal/errs"
	"github.com/and161185/quotereality/internal/service"
)

// Pinger reports storage health for /api/health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the router.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Server wires services into gin handlers.
type Server struct {
	projects service.ProjectService
	sessions service.SessionService
	settings service.SettingsService
	export   service.ExportService
	verifier *auth.Verifier
	pinger   Pinger
	log      *zap.Logger
	now      func() time.Time
}

// New constructs a Server with injected services. pinger may be nil.
func New(
	projects service.ProjectService,
	sessions service.SessionService,
	settings service.SettingsService,
	export service.ExportService,
	verifier *auth.Verifier,
	pinger Pinger,
	log *zap.Logger,
) *Server {
	return &Server{
		projects: projects,
		sessions: sessions,
		settings: settings,
		export:   export,
		verifier: verifier,
		pinger:   pinger,
		log:      log,
		now:      time.Now,
	}
}

// Router builds the gin engine with middleware and routes.
func (s *Server) Router(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(s.log), Logging(s.log))
	if opts.RequestTimeout > 0 {
		r.Use(Timeout(opts.RequestTimeout))
	}
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	api := r.Group("/api")
	{
		api.GET("/health", s.health)

		authed := api.Group("", Auth(s.verifier))
		{
			authed.GET("/projects", s.listProjects)
			authed.POST("/projects", s.createProject)
			authed.GET("/projects/:id", s.getProject)
			authed.PATCH("/projects/:id", s.updateProject)
			authed.DELETE("/projects/:id", s.deleteProject)

			authed.POST("/sessions", s.createSession)
			authed.DELETE("/sessions/:id", s.deleteSession)

			authed.GET("/settings", s.getSettings)
			authed.PATCH("/settings", s.updateSettings)

			authed.GET("/export.json", s.exportJSON)
			authed.GET("/export.csv", s.exportCSV)
		}
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return r
}

// writeError maps sentinel errors onto HTTP statuses. Unexpected errors are
// logged and reported with a generic message.
func (s *Server) writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, errs.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMessage(op)})
	case errors.Is(err, errs.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Already exists"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out"})
	default:
		s.log.Error("request failed", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + op})
	}
}

// validationMessage strips the sentinel prefix: "validation: name is required" -> "name is required".
func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), errs.ErrValidation.Error()+": ")
}

func notFoundMessage(op string) string {
	if op == "delete session" {
		return "Session not found"
	}
	return "Project not found"
}
