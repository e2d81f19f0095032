package handlers

import (
	"errors"
	"strconv"

	"jabberwocky238/podrun/dblayer"

	"github.com/buildkite/shellwords"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxListLimit = 100

// SubmitRun queues a command line; the run worker picks it up in order.
func SubmitRun(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	words, err := shellwords.SplitPosix(req.Command)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if len(words) == 0 {
		c.JSON(400, gin.H{"error": "command is empty"})
		return
	}

	run, err := dblayer.CreateRun(uuid.New().String(), req.Command)
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to queue run"})
		return
	}

	c.JSON(202, gin.H{
		"id":     run.ID,
		"status": run.Status,
	})
}

// GetRun returns a run with its collected output
func GetRun(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(404, gin.H{"error": "run not found"})
		return
	}

	run, err := dblayer.GetRun(id)
	if err != nil {
		if errors.Is(err, dblayer.ErrNotFound) {
			c.JSON(404, gin.H{"error": "run not found"})
		} else {
			c.JSON(500, gin.H{"error": "failed to get run"})
		}
		return
	}

	c.JSON(200, run)
}

// ListRuns lists runs newest first, paginated with limit and offset
func ListRuns(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, maxListLimit)
		}
	}
	offset := 0
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	runs, err := dblayer.ListRuns(limit, offset)
	if err != nil {
		c.JSON(500, gin.H{"error": "failed to list runs"})
		return
	}

	c.JSON(200, runs)
}
