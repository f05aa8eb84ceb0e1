package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/pdfrag/internal/model"
	"github.com/kart-io/pdfrag/internal/rag/handler"
	"github.com/kart-io/pdfrag/pkg/component/storage"
)

type nopService struct{}

func (nopService) Ingest(context.Context, string, []byte, string) (*model.IngestResult, error) {
	return &model.IngestResult{DocumentID: "d"}, nil
}

func (nopService) Query(_ context.Context, q string, _ int, _ string) (*model.QueryResult, error) {
	return &model.QueryResult{Query: q}, nil
}

func (nopService) ListCollections(context.Context) ([]model.CollectionInfo, error) { return nil, nil }

func (nopService) DeleteCollection(context.Context, string) error { return nil }

func (nopService) DeleteDocument(context.Context, string, string) (int64, error) { return 1, nil }

type healthyChecker struct{}

func (healthyChecker) HealthCheckAll(context.Context) map[string]storage.HealthStatus {
	return map[string]storage.HealthStatus{"vector_store": {Name: "vector_store", Healthy: true}}
}

func TestRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	Register(engine,
		handler.NewRAGHandler(nopService{}, handler.Options{}),
		handler.NewHealthHandler(healthyChecker{}, "pdfrag", "test"),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)

	routes := map[string]bool{}
	for _, r := range engine.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"POST /v1/rag/query",
		"POST /v1/rag/upload",
		"GET /v1/rag/collections",
		"DELETE /v1/rag/collections/:name",
		"DELETE /v1/rag/collections/:name/documents/:id",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "router_test_total 1")

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}

func TestRegisterWithoutOptionalHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	Register(engine, handler.NewRAGHandler(nopService{}, handler.Options{}), nil, nil)

	for _, r := range engine.Routes() {
		assert.NotEqual(t, "/metrics", r.Path)
		assert.NotEqual(t, "/health", r.Path)
	}
}
