package server

import (
	"bytes"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tablebook/internal/auth"
)

const claimsKey = "claims"

// maxTrackedIPs bounds the limiter map; idle entries are pruned past it.
const maxTrackedIPs = 10000

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client address.
type IPRateLimiter struct {
	ips map[string]*ipLimiter
	mu  sync.Mutex
	r   rate.Limit
	b   int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{ips: make(map[string]*ipLimiter), r: r, b: b}
}

// Allow reports whether ip may make a request now.
func (i *IPRateLimiter) Allow(ip string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := time.Now()
	entry, ok := i.ips[ip]
	if !ok {
		if len(i.ips) >= maxTrackedIPs {
			i.pruneLocked(now.Add(-time.Minute))
		}
		entry = &ipLimiter{limiter: rate.NewLimiter(i.r, i.b)}
		i.ips[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

func (i *IPRateLimiter) pruneLocked(cutoff time.Time) {
	for ip, entry := range i.ips {
		if entry.lastSeen.Before(cutoff) {
			delete(i.ips, ip)
		}
	}
}

// RateLimit rejects clients that exceed their bucket with 429.
func RateLimit(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Error: "too many requests", Retryable: true})
			return
		}
		c.Next()
	}
}

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves repeated GETs from memory. Only 2xx answers are stored.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || ttl <= 0 {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if resp, found := store.Get(key); found {
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			_, _ = c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		w := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// A failed render still reports 200 from gin, so recorded errors skip the store.
		if status := w.Status(); status >= 200 && status < 300 && len(c.Errors) == 0 {
			store.Set(key, cachedResponse{
				status:  status,
				headers: w.Header().Clone(),
				body:    w.body.Bytes(),
			}, ttl)
		}
	}
}

// FlushOnWrite drops every cached GET after a successful mutation.
func FlushOnWrite(store *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Request.Method != http.MethodGet && c.Writer.Status() < 400 {
			store.Flush()
		}
	}
}

// RequireAuth accepts a bearer token and stores its claims on the context.
func RequireAuth(tokens *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := ""
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimSpace(header[len("Bearer "):])
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "access token required"})
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "invalid or expired token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

func actor(c *gin.Context) string {
	if claims := claimsFrom(c); claims != nil {
		return claims.Username
	}
	return ""
}

// RequestLogger writes one zerolog line per request.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		} else if status >= http.StatusBadRequest {
			event = logger.Warn()
		}
		event.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Str("user", actor(c)).
			Msg("http request")
	}
}
