package handlers

import (
	"context"
	"net/http"
	"time"

	"jabberwocky238/podrun/dblayer"
	"jabberwocky238/podrun/k8s"

	"github.com/gin-gonic/gin"
)

// Health reports the run store, the cluster client and the run queue.
func Health(c *gin.Context) {
	status := gin.H{
		"status":     "ok",
		"timestamp":  time.Now().Unix(),
		"kubernetes": "not_initialized",
		"worker":     "stopped",
	}

	if k8s.K8sClient != nil {
		status["kubernetes"] = "healthy"
	}
	if k8s.WorkerRunning() {
		status["worker"] = "running"
	}

	if dblayer.DB == nil {
		status["database"] = "not_initialized"
		c.JSON(http.StatusOK, status)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := dblayer.DB.PingContext(ctx); err != nil {
		status["status"] = "degraded"
		status["database"] = "unhealthy"
		status["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	status["database"] = "healthy"

	if pending, err := dblayer.CountRuns(dblayer.RunStatusPending); err == nil {
		status["pending_runs"] = pending
	}
	c.JSON(http.StatusOK, status)
}
