package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dpshade/scriptureqa/internal/pipeline"
	"github.com/dpshade/scriptureqa/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Asker runs a question through the pipeline
type Asker interface {
	Run(ctx context.Context, question string, rec pipeline.Recorder) (*pipeline.Result, error)
}

// StatusInfo describes the running configuration for /status
type StatusInfo struct {
	Backends         []string `json:"backends"`
	Translation      string   `json:"translation"`
	StrictReferences bool     `json:"strictReferences"`
}

// Handler handles API requests
type Handler struct {
	asker    Asker
	sessions *session.Store
	info     StatusInfo
}

// NewHandler creates a new API handler
func NewHandler(asker Asker, sessions *session.Store, info StatusInfo) *Handler {
	return &Handler{
		asker:    asker,
		sessions: sessions,
		info:     info,
	}
}

// Register mounts the routes on e
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/status", h.Status)
	e.GET("/ask", h.Ask) // Support GET for quick queries
	e.POST("/ask", h.Ask)
	e.POST("/sessions", h.CreateSession)
	e.GET("/sessions/:id", h.GetSession)
	e.DELETE("/sessions/:id", h.EndSession)
}

// Health handles health check requests
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// StatusResponse represents a status response
type StatusResponse struct {
	StatusInfo
	Sessions int `json:"sessions"`
}

// Status handles status requests
func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		StatusInfo: h.info,
		Sessions:   h.sessions.Count(),
	})
}

// AskRequest represents a question submission
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId,omitempty"`
}

// AskResponse represents the outcome of a turn
type AskResponse struct {
	SessionID   string           `json:"sessionId,omitempty"`
	Status      string           `json:"status"`
	GeneratedIn string           `json:"generatedIn,omitempty"`
	Result      *pipeline.Result `json:"result"`
}

// Ask handles question requests (both GET and POST)
func (h *Handler) Ask(c echo.Context) error {
	var req AskRequest

	if c.Request().Method == http.MethodGet {
		req.Question = c.QueryParam("q")
		if req.Question == "" {
			req.Question = c.QueryParam("question")
		}
		req.SessionID = c.QueryParam("session")
	} else {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "Invalid request body",
			})
		}
	}

	var rec pipeline.Recorder
	if req.SessionID != "" {
		sess, err := h.sessions.Get(req.SessionID)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "Session not found",
			})
		}
		sess.Lock()
		defer sess.Unlock()
		rec = sess.Transcript
	}

	result, err := h.asker.Run(c.Request().Context(), req.Question, rec)

	switch {
	case err == nil:
		return c.JSON(http.StatusOK, AskResponse{
			SessionID:   req.SessionID,
			Status:      "success",
			GeneratedIn: fmt.Sprintf("%.1fs", result.Answer.Elapsed.Seconds()),
			Result:      result,
		})
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Question is required",
		})
	case errors.Is(err, pipeline.ErrNoVersesResolved):
		return c.JSON(http.StatusUnprocessableEntity, AskResponse{
			SessionID: req.SessionID,
			Status:    string(result.Outcome),
			Result:    result,
		})
	case errors.Is(err, pipeline.ErrCompositionFailed):
		return c.JSON(http.StatusBadGateway, AskResponse{
			SessionID: req.SessionID,
			Status:    string(result.Outcome),
			Result:    result,
		})
	default:
		log.Error().Err(err).Msg("Ask failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error":   "Ask failed",
			"details": err.Error(),
		})
	}
}

// SessionResponse represents a session and its transcript
type SessionResponse struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Turns     []pipeline.Turn `json:"turns"`
}

// CreateSession starts a new session
func (h *Handler) CreateSession(c echo.Context) error {
	sess := h.sessions.Create()
	log.Debug().Str("session", sess.ID).Msg("Session created")
	return c.JSON(http.StatusCreated, SessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Turns:     []pipeline.Turn{},
	})
}

// GetSession returns a session transcript
func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Session not found",
		})
	}
	return c.JSON(http.StatusOK, SessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Turns:     sess.Transcript.Turns(),
	})
}

// EndSession drops a session and its transcript
func (h *Handler) EndSession(c echo.Context) error {
	if err := h.sessions.End(c.Param("id")); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Session not found",
		})
	}
	return c.NoContent(http.StatusNoContent)
}
