package httpserver

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/errtop/internal/model"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = "127.0.0.1:3170"

	// MaxTopK bounds the k accepted by /api/topk.
	MaxTopK = 10_000
)

// Server provides an HTTP API for querying the error ranking.
type Server struct {
	addr      string
	reader    model.TopKReader
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, reader model.TopKReader) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		reader:    reader,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/topk", s.handleTopK)
	r.GET("/api/stats", s.handleStats)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = listener.Addr().String()
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the listen address, resolved once started.
func (s *Server) Addr() string { return s.addr }

func (s *Server) handleHealth(c *gin.Context) {
	stats, err := s.reader.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"uptime":   time.Since(s.startTime).String(),
		"distinct": stats.Ranker.Distinct,
		"recorded": stats.Ranker.Recorded,
	})
}

func (s *Server) handleTopK(c *gin.Context) {
	k := model.DefaultTopK
	if raw, ok := c.GetQuery("k"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > MaxTopK {
			c.JSON(http.StatusBadRequest, gin.H{"error": "k must be an integer between 0 and " + strconv.Itoa(MaxTopK)})
			return
		}
		k = n
	}

	snap, err := s.reader.TopK(k)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snap == nil {
		snap = model.Snapshot{}
	}

	c.JSON(http.StatusOK, gin.H{
		"k":       k,
		"entries": snap,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.reader.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
