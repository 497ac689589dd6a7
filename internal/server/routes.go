package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/memipc/internal/infrastructure/monitoring"
)

func (s *Server) setupRouter() *gin.Engine {
	if !s.cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(s.metrics))

	router.GET("/healthz", s.health)
	router.GET("/stats", s.stats)
	router.GET("/tables/:table", s.tableInfo)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	return router
}

func (s *Server) health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if s.stopping.Load() {
		status = "stopping"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":   status,
		"instance": s.instance,
		"queue":    s.cfg.Queue.Name,
		"running":  s.running.Load(),
	})
}

func (s *Server) stats(c *gin.Context) {
	resp := gin.H{
		"instance":       s.instance,
		"uptime_seconds": time.Since(s.started).Seconds(),
		"messages":       s.metrics.Snapshot(),
		"tables":         s.shadow.Tables(),
	}
	if s.journal != nil {
		resp["journal_end"] = s.journal.End()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) tableInfo(c *gin.Context) {
	name := c.Param("table")
	keys := s.shadow.Keys(name)
	if len(keys) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "table not found", "table": name})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"table":   name,
		"entries": len(keys),
		"keys":    keys,
	})
}
