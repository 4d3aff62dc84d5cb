package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/referralhub/backend/internal/config"
	"github.com/referralhub/backend/internal/errutil"
	"golang.org/x/time/rate"
)

const maxLoginBody = 1 << 20

// RateLimiter implements rate limiting for API endpoints
type RateLimiter struct {
	ipLimiters      map[string]*rate.Limiter
	authLimiters    map[string]*rate.Limiter
	ipMutex         sync.Mutex
	authMutex       sync.Mutex
	ipLimiterRate   rate.Limit
	authLimiterRate rate.Limit
	ipBurst         int
	authBurst       int
	cleanupTicker   *time.Ticker
	done            chan struct{}
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	limiter := &RateLimiter{
		ipLimiters:      make(map[string]*rate.Limiter),
		authLimiters:    make(map[string]*rate.Limiter),
		ipLimiterRate:   rate.Limit(cfg.RequestsPerSecond),
		authLimiterRate: rate.Limit(cfg.LoginPerMinute / 60),
		ipBurst:         cfg.Burst,
		authBurst:       cfg.LoginBurst,
		cleanupTicker:   time.NewTicker(5 * time.Minute),
		done:            make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

// cleanup periodically drops all limiters so the maps don't grow unbounded
func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.ipMutex.Lock()
			rl.ipLimiters = make(map[string]*rate.Limiter)
			rl.ipMutex.Unlock()

			rl.authMutex.Lock()
			rl.authLimiters = make(map[string]*rate.Limiter)
			rl.authMutex.Unlock()
		case <-rl.done:
			return
		}
	}
}

// Stop stops the rate limiter cleanup
func (rl *RateLimiter) Stop() {
	rl.cleanupTicker.Stop()
	close(rl.done)
}

func (rl *RateLimiter) getIPLimiter(ip string) *rate.Limiter {
	rl.ipMutex.Lock()
	defer rl.ipMutex.Unlock()

	limiter, exists := rl.ipLimiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.ipLimiterRate, rl.ipBurst)
		rl.ipLimiters[ip] = limiter
	}
	return limiter
}

func (rl *RateLimiter) getAuthLimiter(key string) *rate.Limiter {
	rl.authMutex.Lock()
	defer rl.authMutex.Unlock()

	limiter, exists := rl.authLimiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.authLimiterRate, rl.authBurst)
		rl.authLimiters[key] = limiter
	}
	return limiter
}

func tooManyRequests(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": gin.H{"code": "RATE_LIMITED", "message": message},
	})
}

// IPRateLimiterMiddleware limits requests based on IP address
func (rl *RateLimiter) IPRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getIPLimiter(c.ClientIP()).Allow() {
			tooManyRequests(c, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// AuthRateLimiterMiddleware limits login attempts per IP and email. The
// request body is restored so handlers can bind it again.
func (rl *RateLimiter) AuthRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !rl.getIPLimiter(ip).Allow() {
			tooManyRequests(c, "rate limit exceeded")
			return
		}

		if c.Request.Method == http.MethodPost && c.Request.Body != nil {
			body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLoginBody))
			if err != nil {
				c.AbortWithStatusJSON(errutil.Response(errutil.InvalidArgument("failed to read request body")))
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))

			email := emailFromBody(body)
			if email != "" && !rl.getAuthLimiter(ip+":"+email).Allow() {
				tooManyRequests(c, "too many authentication attempts, please try again later")
				return
			}
		}

		c.Next()
	}
}

func emailFromBody(body []byte) string {
	var requestBody struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &requestBody); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(requestBody.Email))
}
