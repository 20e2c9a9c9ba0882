package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	router := gin.New()
	router.Use(AccessLog(log), Recovery(log))
	return router, logs
}

func TestAccessLog(t *testing.T) {
	t.Run("logs one info line per successful request", func(t *testing.T) {
		router, logs := newObservedRouter(t)
		router.GET("/sales", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sales", nil))

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zapcore.InfoLevel, entry.Level)
		assert.Equal(t, "request", entry.Message)

		fields := entry.ContextMap()
		assert.Equal(t, int64(http.StatusOK), fields["status"])
		assert.Equal(t, http.MethodGet, fields["method"])
		assert.Equal(t, "/sales", fields["path"])
		assert.NotEmpty(t, fields["request_id"])
	})

	t.Run("client errors log at warn and server errors at error", func(t *testing.T) {
		router, logs := newObservedRouter(t)
		router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
		router.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/broken", nil))

		require.Equal(t, 2, logs.Len())
		assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
		assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
	})

	t.Run("assigns each request its own id", func(t *testing.T) {
		router, logs := newObservedRouter(t)
		router.GET("/sales", func(c *gin.Context) { c.Status(http.StatusOK) })

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sales", nil))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sales", nil))

		require.Equal(t, 2, logs.Len())
		first := logs.All()[0].ContextMap()["request_id"]
		second := logs.All()[1].ContextMap()["request_id"]
		assert.NotEqual(t, first, second)
	})
}

func TestRecovery(t *testing.T) {
	router, logs := newObservedRouter(t)
	router.GET("/panic", func(c *gin.Context) { panic("ledger out of balance") })

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	panicLogs := logs.FilterMessage("request panicked").All()
	require.Len(t, panicLogs, 1)
	assert.Equal(t, zapcore.ErrorLevel, panicLogs[0].Level)
	assert.Equal(t, "ledger out of balance", panicLogs[0].ContextMap()["panic"])
}

func TestGetGinLogger(t *testing.T) {
	t.Run("returns the request-scoped logger inside a handler", func(t *testing.T) {
		router, logs := newObservedRouter(t)
		router.GET("/sales", func(c *gin.Context) {
			GetGinLogger(c).Info("handler line")
			c.Status(http.StatusOK)
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sales", nil))

		handlerLogs := logs.FilterMessage("handler line").All()
		require.Len(t, handlerLogs, 1)
		assert.NotEmpty(t, handlerLogs[0].ContextMap()["request_id"])
	})

	t.Run("falls back to a no-op logger outside a request", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		log := GetGinLogger(c)
		require.NotNil(t, log)
		assert.NotPanics(t, func() { log.Info("ignored") })
	})
}
