/*
Package api serves the REST front end.

The API is a thin read layer over the run log, the item store and the
usage gate, plus a single mutating endpoint that triggers a run. Run
mutual exclusion is the file lock's job; a second concurrent POST /api/runs
fails with the lock conflict instead of queueing.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hoangvle/recall-cycle/internal/config"
	"github.com/hoangvle/recall-cycle/internal/errs"
	"github.com/hoangvle/recall-cycle/internal/gate"
	"github.com/hoangvle/recall-cycle/internal/logging"
	"github.com/hoangvle/recall-cycle/internal/notestore"
	"github.com/hoangvle/recall-cycle/internal/runlog"
	"github.com/hoangvle/recall-cycle/internal/store"
)

// RunExecutor triggers one cycle run. Satisfied by phase.Runner.
type RunExecutor interface {
	Run(ctx context.Context, mode string) (*runlog.RunRecord, error)
}

// Server hosts the REST API for one space.
type Server struct {
	cfg    *config.Config
	client notestore.Client
	runner RunExecutor
	gate   *gate.Gate
	runs   *runlog.Store
	logger *logging.Logger
}

// New wires a server. gate and runs may be nil; their endpoints then
// report absence instead of failing.
func New(cfg *config.Config, client notestore.Client, runner RunExecutor,
	g *gate.Gate, runs *runlog.Store, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{cfg: cfg, client: client, runner: runner, gate: g, runs: runs, logger: logger}
}

// Engine builds the configured gin engine.
func (s *Server) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", s.handleHealth)

	registry := prometheus.NewRegistry()
	registry.MustRegister(newUsageCollector(s.gate, s.cfg.LLM.Provider))
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := engine.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/runs", s.handleListRuns)
		api.POST("/runs", s.handleExecuteRun)
		api.GET("/usage", s.handleUsage)
	}
	return engine
}

// ListenAndServe blocks serving the API until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: s.Engine()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("api listening", "addr", s.cfg.API.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"space": s.cfg.Space,
		"deck":  s.cfg.NoteStore.Deck,
	}

	if version, err := s.client.Version(c.Request.Context()); err != nil {
		status["note_store"] = gin.H{"reachable": false, "error": err.Error()}
	} else {
		status["note_store"] = gin.H{"reachable": true, "version": version}
	}

	items, err := store.ReadItems(s.cfg.ItemsPath())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	active := 0
	for _, item := range items {
		if !item.Retired {
			active++
		}
	}
	status["items"] = gin.H{"total": len(items), "active": active}

	queue, err := store.ReadQueue(s.cfg.QueuePath())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ledger, err := store.ReadLedger(s.cfg.LedgerPath())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	used := store.UsedSourceIDs(ledger)
	pending := 0
	for _, src := range queue {
		if !used[src.SourceID] {
			pending++
		}
	}
	status["queue"] = gin.H{"total": len(queue), "pending": pending}

	if s.runs != nil {
		if last, err := s.runs.LastRun(s.cfg.Space); err == nil && last != nil {
			status["last_run"] = last
		}
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []runlog.RunRecord{}})
		return
	}
	limit := 20
	if raw, ok := c.GetQuery("limit"); ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := s.runs.ListRuns(s.cfg.Space, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": records})
}

type runRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleExecuteRun(c *gin.Context) {
	var req runRequest
	// An absent or malformed body means a default daily run.
	_ = c.ShouldBindJSON(&req)
	if s.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run execution not configured"})
		return
	}

	rec, err := s.runner.Run(c.Request.Context(), req.Mode)
	if err != nil {
		code := http.StatusInternalServerError
		if errs.CodeOf(err) == "LOCK_HELD" {
			code = http.StatusConflict
		}
		c.JSON(code, gin.H{"error": err.Error(), "record": rec})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

func (s *Server) handleUsage(c *gin.Context) {
	if s.gate == nil {
		c.JSON(http.StatusOK, gin.H{"usage": nil})
		return
	}
	provider := c.DefaultQuery("provider", s.cfg.LLM.Provider)
	snap, err := s.gate.Usage(provider)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	warnings, err := s.gate.Warnings(provider)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": snap, "warnings": warnings, "limiter": s.gate.LimiterStatus()})
}
