package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/pdfrag/pkg/utils/errors"
	"github.com/kart-io/pdfrag/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(RequestIDKey, "req-1")

	OK(c, map[string]int{"chunks_created": 3})

	assert.Equal(t, http.StatusOK, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, "req-1", body.RequestID)
	assert.NotZero(t, body.Timestamp)
}

func TestFailUsesErrnoStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *errors.Errno
		want int
	}{
		{"bad request", errors.ErrRAGBadRequest, http.StatusBadRequest},
		{"model unavailable", errors.ErrRAGModelUnavailable, http.StatusServiceUnavailable},
		{"internal", errors.ErrRAGInternal, http.StatusInternalServerError},
		{"document", errors.ErrRAGDocumentProcessing, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			Fail(c, tt.err)

			assert.Equal(t, tt.want, w.Code)
			assert.True(t, c.IsAborted())
		})
	}
}

func TestFailChineseMessage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Accept-Language", "zh-CN")

	Fail(c, errors.ErrRAGModelUnavailable)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "语言模型不可用", body.Message)
}

func TestHTTPStatusFallback(t *testing.T) {
	r := &Response{Code: errors.MakeCode(99, errors.CategoryTimeout, 999)}
	assert.Equal(t, http.StatusGatewayTimeout, r.HTTPStatus())
}

func TestFailNilIsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Fail(c, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrInternal.Code, body.Code)
}
