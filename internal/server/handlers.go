package server

import (
	_ "embed"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/arin/pagesum/internal/ai"
	"github.com/arin/pagesum/internal/history"
	"github.com/arin/pagesum/internal/scrape"
	"github.com/arin/pagesum/internal/session"
	"github.com/arin/pagesum/internal/stats"
	"github.com/arin/pagesum/internal/think"
)

const defaultHistoryLimit = 20

//go:embed web/index.html
var indexHTML []byte

type errorBody struct {
	Error string `json:"error"`
}

type openRequest struct {
	URL string `json:"url" binding:"required"`
}

type openResponse struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Chars int    `json:"chars"`
}

type askRequest struct {
	Message string `json:"message"`
}

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) openPage(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "request body must be {\"url\": \"...\"}"})
		return
	}

	page, err := s.manager.Open(c.Request.Context(), req.URL)
	if err != nil {
		writeError(c, err)
		return
	}
	snap := page.Snapshot()
	c.JSON(http.StatusCreated, openResponse{
		ID:    snap.ID,
		URL:   snap.URL,
		Title: snap.Title,
		Chars: snap.Chars,
	})
}

func (s *Server) listPages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pages": s.manager.List()})
}

func (s *Server) getPage(c *gin.Context) {
	page, err := s.manager.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page.Snapshot())
}

func (s *Server) closePage(c *gin.Context) {
	if err := s.manager.Close(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) summarize(c *gin.Context) {
	id := c.Param("id")
	streamState(c, func(onUpdate func(think.State)) (think.State, error) {
		return s.manager.Summarize(c.Request.Context(), id, onUpdate)
	})
}

func (s *Server) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "request body must be {\"message\": \"...\"}"})
		return
	}
	id := c.Param("id")
	streamState(c, func(onUpdate func(think.State)) (think.State, error) {
		return s.manager.Ask(c.Request.Context(), id, req.Message, onUpdate)
	})
}

func (s *Server) resetChat(c *gin.Context) {
	if err := s.manager.ResetChat(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) history(c *gin.Context) {
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	entries, err := history.Load(limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) stats(c *gin.Context) {
	summary, err := stats.Summarize()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrPageNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrEmptyQuestion), errors.Is(err, scrape.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoContent), errors.Is(err, ai.ErrEmptyContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, scrape.ErrFetch), errors.Is(err, session.ErrStreamFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("unhandled error")
	}
	c.JSON(status, errorBody{Error: err.Error()})
}
