package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limitedRouter(rps, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Limit(rps, burst, time.Minute))
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return router
}

func ping(router *gin.Engine, remoteAddr string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)

	return w.Code
}

func TestLimitRejectsAboveBurst(t *testing.T) {
	router := limitedRouter(1, 2)

	assert.Equal(t, http.StatusOK, ping(router, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, ping(router, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, ping(router, "10.0.0.1:1234"))
}

func TestLimitTracksVisitorsSeparately(t *testing.T) {
	router := limitedRouter(1, 1)

	assert.Equal(t, http.StatusOK, ping(router, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, ping(router, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, ping(router, "10.0.0.2:1234"), "a second client has its own bucket")
}
