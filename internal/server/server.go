// Package server exposes the dispatcher over HTTP.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/javiermolinar/airtime/internal/command"
	"github.com/javiermolinar/airtime/internal/slot"
)

// UserHeader identifies the operator a request acts for.
const UserHeader = "X-User"

// Server is the HTTP API.
type Server struct {
	router     *gin.Engine
	dispatcher *command.Dispatcher
	logger     *slog.Logger
}

// New creates a server. Release mode is used unless debug is set.
func New(dispatcher *command.Dispatcher, logger *slog.Logger, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:     gin.New(),
		dispatcher: dispatcher,
		logger:     logger,
	}
	s.router.Use(gin.Recovery(), s.accessLog)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.health)

	api := s.router.Group("/api/v1")
	{
		api.POST("/periods/select", s.selectPeriod)
		api.POST("/reserve", s.reserve)
		api.POST("/cancel", s.cancel)
		api.POST("/messages", s.message)
		api.GET("/days/:year/:month/:day", s.day)
	}
}

// Handler returns the router for use with an http.Server or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts serving on addr.
func (s *Server) Run(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.router.Run(addr)
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"elapsed", time.Since(start),
	)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// user reads the acting user from the header, falling back to ?user=.
func user(c *gin.Context) string {
	if u := strings.TrimSpace(c.GetHeader(UserHeader)); u != "" {
		return u
	}
	return strings.TrimSpace(c.Query("user"))
}

// statusOf maps a dispatch error to an HTTP status.
func statusOf(err error) int {
	var verr *slot.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, command.ErrNoPeriod):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) dispatch(c *gin.Context, req command.Request) {
	reply, err := s.dispatcher.Dispatch(c.Request.Context(), user(c), req)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) selectPeriod(c *gin.Context) {
	var req command.SelectPeriod
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request: " + err.Error()})
		return
	}
	s.dispatch(c, req)
}

func (s *Server) reserve(c *gin.Context) {
	var req command.Reserve
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request: " + err.Error()})
		return
	}
	s.dispatch(c, req)
}

func (s *Server) cancel(c *gin.Context) {
	var req command.Cancel
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request: " + err.Error()})
		return
	}
	s.dispatch(c, req)
}

type messageRequest struct {
	Text string `json:"text"`
}

// message runs a raw chat message. Failures are part of the report text,
// so the response is always 200 once the body parses.
func (s *Server) message(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request: " + err.Error()})
		return
	}
	text := s.dispatcher.HandleMessage(c.Request.Context(), user(c), req.Text)
	c.JSON(http.StatusOK, gin.H{"report": text})
}

func (s *Server) day(c *gin.Context) {
	var req command.ViewDay
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"year", &req.Year},
		{"month", &req.Month},
		{"day", &req.Day},
	} {
		n, err := strconv.Atoi(c.Param(p.name))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": p.name + " must be a number"})
			return
		}
		*p.dst = n
	}
	s.dispatch(c, req)
}
