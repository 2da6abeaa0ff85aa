// Package statusapi is the one inbound HTTP surface the core ships: a tiny,
// opt-in, read-only status router (C26). It deliberately does not attempt
// to be the WebSocket gateway spec.md §1 describes as out of scope.
package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/logging"
)

// QueueCounters mirrors assess.QueueCounters without importing the assess
// package directly, so statusapi stays a leaf dependency.
type QueueCounters struct {
	Active    int `json:"active"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Sources supplies statusapi with the live state it reports. Every method
// must be safe to call concurrently and must never block meaningfully long
// — this is a best-effort introspection surface, not a control plane.
type Sources struct {
	// QueueCounters returns the current assessment queue counters (C11).
	QueueCounters func() QueueCounters
	// SyncQueueSize returns the current memory-service sync queue depth (C14).
	SyncQueueSize func(ctx context.Context) (int, error)
	// LastBuild returns the most recently produced build, if any.
	LastBuild func() (event.DistilledSession, bool)
}

// Server wraps a gin.Engine exposing /healthz, /status and /report.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
}

// New builds a Server bound to addr (not yet listening; call Start).
func New(addr string, sources Sources) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.GET("/status", func(c *gin.Context) {
		resp := gin.H{"time": time.Now().UTC()}
		if sources.QueueCounters != nil {
			resp["assessQueue"] = sources.QueueCounters()
		}
		if sources.SyncQueueSize != nil {
			if n, err := sources.SyncQueueSize(c.Request.Context()); err == nil {
				resp["memorySyncQueueSize"] = n
			} else {
				resp["memorySyncQueueError"] = err.Error()
			}
		}
		c.JSON(http.StatusOK, resp)
	})

	engine.GET("/report", func(c *gin.Context) {
		if sources.LastBuild == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no build reporter configured"})
			return
		}
		build, ok := sources.LastBuild()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no build has completed yet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"sourceSessionIds": build.SourceSessionIDs,
			"sourcePlatforms":  build.SourcePlatforms,
			"chunkCount":       len(build.Chunks),
			"totalTokens":      build.TotalTokens,
			"droppedChunks":    build.DroppedChunks,
			"distilledAt":      build.DistilledAt,
		})
	})

	return &Server{engine: engine, srv: &http.Server{Addr: addr, Handler: engine}}
}

// Handler returns the underlying http.Handler, for tests and for embedding
// behind a different listener than Start's own http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving in the background. Listen errors (other than a
// graceful Shutdown) are logged, not returned — this endpoint is a
// convenience, not something a failed bind should take the whole process
// down over.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.WithError(err).Errorf("statusapi: listen on %s failed", s.srv.Addr)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
