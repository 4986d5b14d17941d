package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newCORSRouter(origins *OriginSet) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS(origins))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func allowOriginHeader(router *gin.Engine, origin string) string {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", origin)
	router.ServeHTTP(w, req)
	return w.Header().Get("Access-Control-Allow-Origin")
}

func TestCORSHotUpdateTakesEffect(t *testing.T) {
	origins := NewOriginSet([]string{"https://portal.example.com"})
	router := newCORSRouter(origins)

	if got := allowOriginHeader(router, "https://portal.example.com"); got != "https://portal.example.com" {
		t.Errorf("whitelisted origin rejected, header = %q", got)
	}
	if got := allowOriginHeader(router, "https://evil.example.com"); got != "" {
		t.Errorf("unknown origin allowed, header = %q", got)
	}

	// 白名单热更新后不重启中间件，后续请求按新名单放行
	origins.Update([]string{"https://staging.example.com"})

	if got := allowOriginHeader(router, "https://staging.example.com"); got != "https://staging.example.com" {
		t.Errorf("newly whitelisted origin rejected, header = %q", got)
	}
	if got := allowOriginHeader(router, "https://portal.example.com"); got != "" {
		t.Errorf("removed origin still allowed, header = %q", got)
	}
}

func TestRateLimiterSettingsHotUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	settings := NewRateLimitSettings(2, time.Minute)
	router := gin.New()
	router.Use(RateLimiter(settings))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := do(); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	if code := do(); code != http.StatusOK {
		t.Fatalf("second request: %d", code)
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", code)
	}

	// 调大限额后旧的限流器作废，同一IP立即按新参数放行
	settings.Update(100, time.Minute)

	if code := do(); code != http.StatusOK {
		t.Errorf("request after limit raise = %d, want 200", code)
	}
}

func TestRateLimitSettingsDefaults(t *testing.T) {
	settings := NewRateLimitSettings(0, 0)
	_, burst, window, _ := settings.snapshot()
	if burst != 100000 || window != time.Minute {
		t.Errorf("defaults = (%d, %s), want (100000, 1m)", burst, window)
	}
}
