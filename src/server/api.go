package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"stock-chatbot/src/dispatcher"
	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"

	"github.com/gin-gonic/gin"
)

// Dispatcher answers one user message
type Dispatcher interface {
	Dispatch(ctx context.Context, userID int64, text string) string
}

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

// APIServer serves the HTTP chat endpoint and pushes background deliveries
// to websocket clients of the same user.
type APIServer struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	Dispatcher Dispatcher
	Journal    interfaces.IJournal
	Status     interfaces.IStatusSource

	engine     *gin.Engine
	httpServer *http.Server

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan models.MDelivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	stateMutex sync.RWMutex
	latestPush int64
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, dispatcher Dispatcher, log *logger.Logger) *APIServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:     cfg,
		Logger:     log,
		Dispatcher: dispatcher,
		engine:     gin.New(),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan models.MDelivery, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}

	s.engine.Use(gin.Recovery(), s.requestLog())

	// CORS for local dashboards
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	go s.handleWebsockets()
	return s
}

// -----------------------------------------------------------------------------

func (s *APIServer) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/status", s.getStatus)
	api.POST("/message", s.postMessage)
	api.GET("/journal", s.getJournal)

	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the routes without a listener
func (s *APIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start blocks serving HTTP until Stop is called
func (s *APIServer) Start() error {
	select {
	case <-s.done:
		return nil
	default:
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.stateMutex.Lock()
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	srv := s.httpServer
	s.stateMutex.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the listener down and disconnects every websocket client
func (s *APIServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	s.stateMutex.RLock()
	srv := s.httpServer
	s.stateMutex.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := len(s.clients)
	latest := s.latestPush
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": connections,
		"latest_push": latest,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getStatus(c *gin.Context) {
	if s.Status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status is not available"})
		return
	}
	c.JSON(http.StatusOK, s.Status.Status())
}

// -----------------------------------------------------------------------------

type messageRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text" binding:"required"`
}

// postMessage runs one message through the dispatcher. The reply goes back in
// the body and to the user's websocket clients. The body's user_id is not
// authenticated, so privileged commands are always refused here.
func (s *APIServer) postMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply := s.Dispatcher.Dispatch(dispatcher.WithoutPrivilege(c.Request.Context()), req.UserID, req.Text)
	if req.UserID > 0 {
		s.Publish(models.MDelivery{UserID: req.UserID, Text: reply, Timestamp: time.Now().UnixMilli()})
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

// -----------------------------------------------------------------------------

// getJournal lists one user's recent deliveries. The journal holds message
// texts, so there is no all-users listing.
func (s *APIServer) getJournal(c *gin.Context) {
	if s.Journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal is disabled"})
		return
	}

	userID, err := parseUserID(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit := queryInt(c, "limit", 50, 1, 500)

	entries, err := s.Journal.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		s.Logger.Error("Journal read failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "journal read failed"})
		return
	}
	if entries == nil {
		entries = []models.MJournalEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
