package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mintdeck/mintdeck/internal/buffer"
	"github.com/mintdeck/mintdeck/internal/collect"
	"github.com/mintdeck/mintdeck/internal/config"
	"github.com/mintdeck/mintdeck/internal/models"
)

// Server holds every service the handlers need. Nothing here is a
// package-level singleton: the buffers, aggregator, hub and metrics are
// constructed once and injected, which keeps them independently testable.
type Server struct {
	cfg  *config.Config
	log  *zap.Logger
	auth *Authenticator

	host     *collect.HostCollector
	probe    *collect.RemoteProbe
	agg      *collect.Aggregator
	logBuf   *buffer.Log
	activity *buffer.Activity
	hub      *Hub
	metrics  *Metrics

	upgrader  websocket.Upgrader
	startedAt time.Time
}

// New assembles the full service graph from config: adapters,
// aggregator, buffers, push hub and scrape registry, with the append
// and record hooks wired up.
func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	auth, err := NewAuthenticator(cfg.JWTSecret, cfg.AdminUser, cfg.AdminPass)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		log:       log,
		auth:      auth,
		host:      collect.NewHostCollector(cfg.DiskPath),
		probe:     collect.NewRemoteProbe(cfg.MintURL, time.Duration(cfg.ProbeTimeoutSeconds)*time.Second),
		logBuf:    buffer.NewLog(cfg.LogBufferCapacity),
		activity:  buffer.NewActivity(cfg.ActivityBufferCap),
		metrics:   NewMetrics(),
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			// The dashboard UI may be served from another origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	entities := collect.NewEntityCounter(
		cfg.MintDBPath,
		time.Duration(cfg.DBQueryTimeoutSeconds)*time.Second,
		log,
	)
	s.agg = collect.NewAggregator(s.host, s.probe, entities, s.activity)

	s.hub = NewHub(time.Duration(cfg.PushIntervalSeconds)*time.Second, s.statsPayload, log)

	// Log entries reach subscribers on append, not on the next tick.
	s.logBuf.OnAppend(s.hub.BroadcastLog)
	// The scrape counter moves with the activity buffer, never backwards.
	s.activity.OnRecord(func(r models.ActivityRecord) {
		s.metrics.RecordRequest(r.Op)
	})

	return s, nil
}

// Log exposes the event log buffer so other packages can record events.
func (s *Server) Log() *buffer.Log { return s.logBuf }

// Hub exposes the subscriber registry (used in tests and shutdown).
func (s *Server) Hub() *Hub { return s.hub }

// Router builds the Gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors.Default())

	// Scrape endpoint: no auth gate; network-level controls are the
	// documented mitigation.
	r.GET("/metrics", s.handleMetrics)

	api := r.Group("/api")
	api.POST("/login", s.handleLogin)
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	authed := api.Group("/", s.auth.Middleware())
	{
		authed.GET("/status", s.handleStatus)

		authed.GET("/logs", s.handleLogs)
		authed.POST("/logs/clear", s.handleLogsClear)
		authed.GET("/activity", s.handleActivity)
		authed.POST("/activity/clear", s.handleActivityClear)

		authed.GET("/ws", s.handleWS)

		authed.GET("/mint/info", s.handleMintInfo)
		authed.GET("/mint/keysets", s.handleMintKeysets)
	}

	return r
}

// statsPayload builds the lightweight per-tick push: process memory and
// uptime, host resources, and the newest activity records.
func (s *Server) statsPayload() StatsPayload {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return StatsPayload{
		Memory:    MemoryUsage{AllocBytes: ms.Alloc, SysBytes: ms.Sys},
		UptimeSec: int64(time.Since(s.startedAt).Seconds()),
		OS:        s.host.Collect(),
		Requests:  s.activity.Recent(10),
		Timestamp: time.Now().UnixMilli(),
	}
}

// ── Handlers ──────────────────────────────────────────────────────────────────

// handleLogin accepts username + password and returns a signed JWT.
func (s *Server) handleLogin(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	if !s.auth.Verify(body.Username, body.Password) {
		s.logBuf.Append(models.CategoryAuth, models.LevelWarn,
			"failed login for "+body.Username, nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.auth.GenerateToken(body.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	s.logBuf.Append(models.CategoryAuth, models.LevelInfo,
		body.Username+" logged in", nil)
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": 86400, // seconds
		"type":       "Bearer",
	})
}

// handleStatus returns a fresh snapshot plus the mint info passthrough.
// No caching between requests: freshness wins at dashboard request rates.
func (s *Server) handleStatus(c *gin.Context) {
	snap, info := s.agg.BuildStatus(c.Request.Context())
	resp := gin.H{
		"mint":            snap.Mint,
		"os":              snap.OS,
		"db":              snap.DB,
		"monitoring":      snap.Monitoring,
		"generated_at_ms": snap.GeneratedAtMs,
	}
	if info != nil {
		resp["mint_info"] = info
	}
	c.JSON(http.StatusOK, resp)
}

// handleMetrics refreshes the gauges from a fresh snapshot, then serves
// the exposition text.
func (s *Server) handleMetrics(c *gin.Context) {
	snap := s.agg.BuildSnapshot(c.Request.Context())
	s.metrics.ObserveSnapshot(snap)
	s.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// handleLogs serves the log query endpoint:
//
//	GET /api/logs?level=&category=&limit=&since=
func (s *Server) handleLogs(c *gin.Context) {
	q := buffer.LogQuery{
		Level:    models.LogLevel(c.Query("level")),
		Category: models.LogCategory(c.Query("category")),
		Limit:    200,
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			q.Limit = n
		}
	}
	if raw := c.Query("since"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			q.SinceID = id
		}
	}

	entries, total := s.logBuf.Query(q)
	if entries == nil {
		entries = []models.LogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "logs": entries})
}

func (s *Server) handleLogsClear(c *gin.Context) {
	s.logBuf.Clear()
	s.logBuf.Append(models.CategoryAdmin, models.LevelInfo, "log buffer cleared", nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleActivity serves the recent activity records and cumulative
// per-operation totals.
func (s *Server) handleActivity(c *gin.Context) {
	limit := 200
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	var since uint64
	if raw := c.Query("since"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			since = id
		}
	}

	records, total := s.activity.Query(since, limit)
	if records == nil {
		records = []models.ActivityRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"total":    total,
		"requests": records,
		"totals":   s.activity.Totals(),
	})
}

func (s *Server) handleActivityClear(c *gin.Context) {
	s.activity.Clear()
	s.logBuf.Append(models.CategoryAdmin, models.LevelInfo, "activity buffer cleared", nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleWS upgrades the connection and hands it to the hub. The hub owns
// the socket from here: connected ack, stats ticks, log fan-out,
// teardown on send failure.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := s.hub.Register(conn)
	s.logBuf.Append(models.CategoryConnection, models.LevelInfo,
		"subscriber connected: "+client.id, nil)
}

// ── Mint passthrough ──────────────────────────────────────────────────────────
//
// Thin proxies over the mint's public API. Besides serving the UI these
// are the production writers of the activity buffer: every call is
// recorded as an operation.

func (s *Server) handleMintInfo(c *gin.Context) {
	s.activity.Record(models.OpInfo, nil, c.ClientIP())
	body, err := s.probe.FetchJSON(c.Request.Context(), "/v1/info")
	if err != nil {
		s.logBuf.Append(models.CategoryProxy, models.LevelWarn,
			"mint info fetch failed: "+err.Error(), nil)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	s.logBuf.Append(models.CategoryProxy, models.LevelDebug, "proxied mint info", nil)
	c.Data(http.StatusOK, "application/json", body)
}

func (s *Server) handleMintKeysets(c *gin.Context) {
	s.activity.Record(models.OpKeys, nil, c.ClientIP())
	body, err := s.probe.FetchJSON(c.Request.Context(), "/v1/keysets")
	if err != nil {
		s.logBuf.Append(models.CategoryProxy, models.LevelWarn,
			"mint keysets fetch failed: "+err.Error(), nil)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	// The live keyset list is fresher than the database pass; feed the
	// gauge from here too.
	var payload struct {
		Keysets []struct {
			Active bool `json:"active"`
		} `json:"keysets"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		active := 0
		for _, ks := range payload.Keysets {
			if ks.Active {
				active++
			}
		}
		s.metrics.SetActiveKeysets(float64(active))
	}

	s.logBuf.Append(models.CategoryProxy, models.LevelDebug, "proxied mint keysets", nil)
	c.Data(http.StatusOK, "application/json", body)
}
