// Package server is the development relay for chatsync clients: the REST
// history and persistence endpoints plus the websocket hub that forwards live
// messages between online users.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/chatsync/internal/client"
	"github.com/raphaelgruber/chatsync/internal/metrics"
	"github.com/raphaelgruber/chatsync/internal/models"
)

const socketPath = "/socket"

// Server wraps the relay router with its dependencies.
type Server struct {
	store   Store
	hub     *Hub
	metrics *metrics.Collector
	logger  *slog.Logger
	router  *gin.Engine
}

// New creates a relay backed by store. m may be nil.
func New(store Store, logger *slog.Logger, m *metrics.Collector) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:   store,
		hub:     NewHub(logger),
		metrics: m,
		logger:  logger.With("component", "relay"),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggingMiddleware(s.logger, m))
	s.registerRoutes(router)
	s.router = router

	return s
}

// Handler returns the HTTP handler for the relay.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server forced to shutdown", "error", err)
		}
	}()

	s.logger.Info("relay listening", "addr", addr, "socket", socketPath)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("relay: %w", err)
	}
	s.logger.Info("relay stopped")
	return nil
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.POST(client.PathHistory, s.handleHistory)
	r.POST(client.PathPersist, s.handlePersist)
	r.GET(socketPath, func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	var req models.HistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if blank(req.RequesterID) || blank(req.PeerID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}

	start := time.Now()
	stored, err := s.store.ListConversation(c.Request.Context(), req.RequesterID, req.PeerID)
	s.recordStore(start, err)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	records := make([]models.HistoryRecord, 0, len(stored))
	for _, m := range stored {
		records = append(records, models.HistoryRecord{SenderID: m.SenderID, Text: m.Text})
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handlePersist(c *gin.Context) {
	var req models.PersistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if blank(req.SenderID) || blank(req.PeerID) || blank(req.Message.Text) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from, to and message.text are required"})
		return
	}

	start := time.Now()
	err := s.store.SaveMessage(c.Request.Context(), req.SenderID, req.PeerID, req.Message.Text)
	s.recordStore(start, err)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add message"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"msg": "message added"})
}

func (s *Server) recordStore(start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordResult(metrics.OpStoreQuery, time.Since(start), err)
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
