// Package api serves backtest results and Prometheus metrics over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/evdnx/gosig/backtest"
	"github.com/evdnx/gosig/executor"
	"github.com/evdnx/gosig/journal"
	"github.com/evdnx/gosig/logger"
)

// RunStore is the part of the journal the server reads.
type RunStore interface {
	Runs(ctx context.Context, limit int) ([]journal.Run, error)
	GetRun(ctx context.Context, id string) (journal.Run, error)
	Trades(ctx context.Context, runID string) ([]executor.TradeEvent, error)
}

// Server wires HTTP endpoints around the latest result and the journal.
type Server struct {
	Router *gin.Engine
	Log    logger.Logger

	store RunStore

	mu     sync.RWMutex
	latest *backtest.Result
	runID  string

	limiters *limiterSet
}

// NewServer builds the router. store may be nil when no journal is kept.
func NewServer(store RunStore, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	r := gin.New()
	s := &Server{
		Router:   r,
		Log:      log,
		store:    store,
		limiters: newLimiterSet(rate.Limit(20), 50),
	}

	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(s.rateLimit())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	runs := s.Router.Group("/runs")
	{
		runs.GET("", s.listRuns)
		runs.GET("/latest", s.getLatest)
		runs.GET("/:id", s.getRun)
		runs.GET("/:id/trades", s.getTrades)
	}
}

// Publish makes res the result served at /runs/latest. runID is the journal
// id, empty when the run was not stored.
func (s *Server) Publish(res *backtest.Result, runID string) {
	s.mu.Lock()
	s.latest, s.runID = res, runID
	s.mu.Unlock()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getLatest(c *gin.Context) {
	s.mu.RLock()
	res, id := s.latest, s.runID
	s.mu.RUnlock()
	if res == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run finished yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": id, "result": res})
}

func (s *Server) listRuns(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "journal disabled"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	runs, err := s.store.Runs(c.Request.Context(), limit)
	if err != nil {
		s.Log.Error("list_runs_failed", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if runs == nil {
		runs = []journal.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "journal disabled"})
		return
	}
	run, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, journal.ErrUnknownRun) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.Log.Error("get_run_failed", logger.String("id", c.Param("id")), logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) getTrades(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "journal disabled"})
		return
	}
	trades, err := s.store.Trades(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.Log.Error("get_trades_failed", logger.String("id", c.Param("id")), logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if trades == nil {
		trades = []executor.TradeEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

// Serve runs the HTTP server until ctx is done, then shuts it down.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.Log.Info("http_listening", logger.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestID adds a unique request ID for tracking.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("RequestID", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// limiterSet hands out one token bucket per client IP.
type limiterSet struct {
	mu    sync.Mutex
	per   map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{per: make(map[string]*rate.Limiter), limit: limit, burst: burst}
}

func (l *limiterSet) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.per[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.per[ip] = lim
	}
	return lim
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiters.get(c.ClientIP()).Allow() {
			s.Log.Warn("rate_limited", logger.String("ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
