package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/pdfrag/pkg/component/storage"
	"github.com/kart-io/pdfrag/pkg/llm/resilience"
)

// HealthChecker reports the health of the registered backends.
type HealthChecker interface {
	HealthCheckAll(ctx context.Context) map[string]storage.HealthStatus
}

// BreakerReporter exposes a circuit breaker snapshot.
type BreakerReporter interface {
	Stats() resilience.BreakerStats
}

// ComponentHealth 单个组件的健康状态。
type ComponentHealth struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Service    string                     `json:"service"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
	Breakers   []resilience.BreakerStats  `json:"breakers,omitempty"`
}

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	checker HealthChecker
	service string
	version string
	timeout  time.Duration
	breakers []BreakerReporter
}

// NewHealthHandler creates a HealthHandler. checker may be nil.
func NewHealthHandler(checker HealthChecker, service, version string) *HealthHandler {
	return &HealthHandler{checker: checker, service: service, version: version, timeout: 5 * time.Second}
}

// WithBreakers adds circuit breakers to the health report. An open breaker
// is reported but does not mark the service degraded.
func (h *HealthHandler) WithBreakers(breakers ...BreakerReporter) *HealthHandler {
	h.breakers = append(h.breakers, breakers...)
	return h
}

// Health 检查所有后端组件；任一组件异常时返回 503 与 "degraded"。
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:     "healthy",
		Service:    h.service,
		Version:    h.version,
		Components: map[string]ComponentHealth{},
	}

	if h.checker != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		for name, st := range h.checker.HealthCheckAll(ctx) {
			resp.Components[name] = ComponentHealth{
				Status:    st.State(),
				LatencyMS: float64(st.Latency.Microseconds()) / 1000,
			}
			if !st.Healthy {
				resp.Status = "degraded"
			}
		}
	}

	for _, b := range h.breakers {
		resp.Breakers = append(resp.Breakers, b.Stats())
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
