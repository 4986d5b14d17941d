package security

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// OriginSet CORS白名单，支持配置热更新时整体替换
type OriginSet struct {
	mu  sync.RWMutex
	set map[string]bool
}

func NewOriginSet(origins []string) *OriginSet {
	s := &OriginSet{}
	s.Update(origins)
	return s
}

// Update 整体替换白名单，替换后新请求立即生效
func (s *OriginSet) Update(origins []string) {
	set := make(map[string]bool, len(origins))
	for _, o := range origins {
		set[o] = true
	}
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
}

func (s *OriginSet) Allowed(origin string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set[origin]
}

// CORS 中间件 仅允许白名单中的Origin，支持Credentials。
// 每个请求都查 OriginSet，白名单热更新无需重启。
func CORS(origins *OriginSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && origins.Allowed(origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// Secure 中间件
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 防止MIME嗅探
		c.Header("X-Content-Type-Options", "nosniff")
		// 防止点击劫持
		c.Header("X-Frame-Options", "DENY")
		// XSS保护
		c.Header("X-XSS-Protection", "1; mode=block")
		// HSTS
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}

		c.Next()
	}
}

// RateLimitSettings 限流参数，支持热更新。
// 每次 Update 递增代次，旧代次的限流器在下次请求时重建。
type RateLimitSettings struct {
	mu          sync.RWMutex
	maxRequests int
	window      time.Duration
	gen         uint64
}

func NewRateLimitSettings(maxRequests int, window time.Duration) *RateLimitSettings {
	s := &RateLimitSettings{}
	s.Update(maxRequests, window)
	return s
}

func (s *RateLimitSettings) Update(maxRequests int, window time.Duration) {
	if window <= 0 {
		window = time.Minute
	}
	if maxRequests <= 0 {
		maxRequests = 100000
	}
	s.mu.Lock()
	s.maxRequests = maxRequests
	s.window = window
	s.gen++
	s.mu.Unlock()
}

func (s *RateLimitSettings) snapshot() (rate.Limit, int, time.Duration, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rate.Every(s.window / time.Duration(s.maxRequests)), s.maxRequests, s.window, s.gen
}

// visitor 包装限流器和最后活跃时间，用于定期清理
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	gen      uint64
}

// RateLimiter 限流中间件 按IP限流，自动清理过期条目
func RateLimiter(settings *RateLimitSettings) gin.HandlerFunc {
	store := make(map[string]*visitor)
	var mu sync.Mutex

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			_, _, window, _ := settings.snapshot()
			expiry := window * 3
			if expiry < time.Minute {
				expiry = time.Minute
			}
			mu.Lock()
			for ip, v := range store {
				if time.Since(v.lastSeen) > expiry {
					delete(store, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		limit, burst, _, gen := settings.snapshot()
		key := c.ClientIP()

		mu.Lock()
		v, exists := store[key]
		if !exists || v.gen != gen {
			v = &visitor{
				limiter: rate.NewLimiter(limit, burst),
				gen:     gen,
			}
			store[key] = v
		}
		v.lastSeen = time.Now()
		mu.Unlock()

		if !v.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		c.Next()
	}
}
