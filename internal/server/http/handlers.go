package httpserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/quotereality/internal/api"
	"github.com/and161185/quotereality/internal/errs"
	"github.com/and161185/quotereality/internal/export"
	"github.com/and161185/quotereality/internal/model"
)

func (s *Server) health(c *gin.Context) {
	if s.pinger != nil {
		if err := s.pinger.Ping(c.Request.Context()); err != nil {
			s.log.Warn("health: storage unavailable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// pathID parses the :id parameter. Malformed ids are reported as not found.
func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		return uuid.Nil, errs.ErrNotFound
	}
	return id, nil
}

// user returns the authenticated user or writes 401.
func (s *Server) user(c *gin.Context) (string, bool) {
	id, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return id, ok
}

// --- Projects ---

func (s *Server) listProjects(c *gin.Context) {
	userID, ok := s.user(c)
	if !ok {
		return
	}
	ps, err := s.projects.List(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, "fetch projects", err)
		return
	}
	c.JSON(http.StatusOK, api.FromProjects(ps))
}

func (s *Server) getProject(c *gin.Context) {
	userID, ok := s.user(c)
	if !ok {
		return
	}
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, "fetch project", err)
		return
	}
	p, err := s.projects.Get(c.Request.Context(), userID, id)
	if err != nil {
		s.writeError(c, "fetch project", err)
		return
	}
	c.JSON(http.StatusOK, api.FromProject(*p))
}

func (s *Server) createProject(c *gin.Context) {
	userID, ok := s.user(c)
	if !ok {
		return
	}
	var body api.CreateProjectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	p, err := s.projects.Create(c.Request.Context(), userID, body.ToModel())
	if err != nil {
		s.writeError(c, "create project", err)
		return
	}
	c.JSON(http.StatusCreated, api.FromProject(*p))
}

func (s *Server) updateProject(c *gin.Context) {
	userID, ok := s.user(c)
	if !ok {
		return
	}
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, "update project", err)
		return
	}
	var body api.UpdateProjectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	p, err := s.projects.Update(c.Request.Context(), userID, id, body.ToModel())
	if err != nil {
		s.writeError(c, "update project", err)
		return
	}
	c.JSON(http.StatusOK, api.FromProject(*p))
}

func (s *Server) deleteProject(c *gin.Context) {
	userID, ok := s.user(c)
	if !ok {
		return
	}
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, "delete project", err)
		return
	}
	if err := s.projects.Delete(c.Request.Context(), userID, id); err != nil {
		s.writeError(c, "delete project", err)
		return
	}
	c.JSON(http.StatusOK, api.SuccessResponse{Success: true})
}

// --- Sessions ---

func (s *Server) createSession(c *gin.Context) {
	userID, ok := s.user(c)
	if !ok {
		return
	}
	var body api.CreateSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if strings.TrimSpace(body.ProjectID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectId is required"})
		return
	}
	pid, err := uuid.FromString(body.ProjectID)
	if err != nil {
		s.writeError(c, "create session", errs.ErrNotFound)
		return
	}
	sess, err := s.sessions.Create(c.Request.Context(), userID, sessionInput(pid, body))
	if err != nil {
		s.writeError(c, "create session", err)
		return
	}
	c.JSON(http.StatusCreated, api.FromSession(*sess))
}

func (s *Server) deleteSession(c *gin.Context) {
	userID, ok := s.user(c)
	if !ok {
		return
	}
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, "delete session", err)
		return
	}
	if err := s.sessions.Delete(c.Request.Context(), userID, id); err != nil {
		s.writeError(c, "delete session", err)
		return
	}
	c.JSON(http.StatusOK, api.SuccessResponse{Success: true})
}

// --- Settings ---

func (s *Server) getSettings(c *gin.Context) {
	userID, ok := s.user(c)
	if !ok {
		return
	}
	st, err := s.settings.Get(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, "fetch settings", err)
		return
	}
	c.JSON(http.StatusOK, api.FromSettings(*st))
}

func (s *Server) updateSettings(c *gin.Context) {
	userID, ok := s.user(c)
	if !ok {
		return
	}
	var body api.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	st, err := s.settings.Update(c.Request.Context(), userID, body.ToModel())
	if err != nil {
		s.writeError(c, "update settings", err)
		return
	}
	c.JSON(http.StatusOK, api.FromSettings(*st))
}

// --- Export ---

func (s *Server) exportJSON(c *gin.Context) {
	userID, ok := s.user(c)
	if !ok {
		return
	}
	snap, err := s.export.Snapshot(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, "export data", err)
		return
	}
	attachment(c, export.JSONFilename(snap.ExportedAt), "application/json; charset=utf-8")
	if err := export.WriteJSON(c.Writer, *snap); err != nil {
		s.log.Error("export json", zap.Error(err))
	}
}

func (s *Server) exportCSV(c *gin.Context) {
	userID, ok := s.user(c)
	if !ok {
		return
	}
	snap, err := s.export.Snapshot(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, "export data", err)
		return
	}
	attachment(c, export.CSVFilename(snap.ExportedAt), "text/csv; charset=utf-8")
	if err := export.WriteCSV(c.Writer, snap.Projects); err != nil {
		s.log.Error("export csv", zap.Error(err))
	}
}

func attachment(c *gin.Context, filename, contentType string) {
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
}

func sessionInput(pid uuid.UUID, body api.CreateSessionRequest) model.NewSession {
	return model.NewSession{
		ProjectID: pid,
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
		Duration:  body.Duration,
		IsManual:  body.IsManual,
		Note:      body.Note,
	}
}
