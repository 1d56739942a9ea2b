package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/andydunstall/rumor/pkg/log"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func TestMetrics(t *testing.T) {
	metrics := NewMetrics("api")
	metrics.Register(prometheus.NewRegistry())

	router := gin.New()
	router.Use(metrics.Handler())
	router.GET("/v1/read", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i != 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/read", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/foo", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 3.0, testutil.ToFloat64(
		metrics.RequestsTotal.WithLabelValues("/v1/read", "200", "GET"),
	))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RequestsInFlight))
}

func TestLogger(t *testing.T) {
	router := gin.New()
	router.Use(NewLogger(log.NewNopLogger()))
	router.GET("/ok", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/error", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/error", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
