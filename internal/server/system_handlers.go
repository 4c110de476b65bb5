package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/morningai/morningai/internal/sysinfo"
)

// requestStats accumulates latency and error counts since startup
type requestStats struct {
	requests    atomic.Int64
	serverErrs  atomic.Int64
	latencyNano atomic.Int64
}

func (r *requestStats) observe(d time.Duration, status int) {
	r.requests.Add(1)
	r.latencyNano.Add(int64(d))
	if status >= http.StatusInternalServerError {
		r.serverErrs.Add(1)
	}
}

// averages returns mean latency in milliseconds and the 5xx ratio
func (r *requestStats) averages() (float64, float64) {
	n := r.requests.Load()
	if n == 0 {
		return 0, 0
	}
	latency := float64(r.latencyNano.Load()) / float64(n) / float64(time.Millisecond)
	return latency, float64(r.serverErrs.Load()) / float64(n)
}

// SystemMetricsResponse is the dashboard's metrics card data
type SystemMetricsResponse struct {
	sysinfo.Metrics
	ResponseTimeMs   float64   `json:"response_time"`
	ErrorRate        float64   `json:"error_rate"`
	PendingApprovals int64     `json:"pending_approvals"`
	UptimeSeconds    int64     `json:"uptime_seconds"`
	Version          string    `json:"version"`
	Timestamp        time.Time `json:"timestamp"`
}

// @Summary Dashboard metrics
// @Description Host resource usage, request latency and error rate, and the pending approval count
// @Tags system
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SystemMetricsResponse
// @Router /api/system/metrics [get]
func (s *Server) getSystemMetrics(c *gin.Context) {
	host, err := s.sysinfo.Read()
	if err != nil {
		// Partial metrics are still useful on hosts without /proc
		s.logger.Debug().Err(err).Msg("System metrics incomplete")
	}

	pending, err := s.decisions.CountPending(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to count pending decisions")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	s.metrics.PendingDecisions.Set(float64(pending))

	latency, errorRate := s.stats.averages()
	c.JSON(http.StatusOK, SystemMetricsResponse{
		Metrics:          host,
		ResponseTimeMs:   latency,
		ErrorRate:        errorRate,
		PendingApprovals: pending,
		UptimeSeconds:    int64(time.Since(s.startedAt).Seconds()),
		Version:          s.version,
		Timestamp:        s.now().UTC(),
	})
}
