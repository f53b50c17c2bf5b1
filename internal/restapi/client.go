// Package restapi is a typed client for the reservation backend.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"tablebook/internal/metrics"
)

const (
	DefaultTimeout = 10 * time.Second
	cachePrefix    = "tablebook:"
)

// APIError is a non-2xx answer from the backend. Detail carries the
// backend's "detail" message when it sent one.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server error: %d", e.Status)
	}
	return fmt.Sprintf("server error: %d - %s", e.Status, e.Detail)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client calls the reservation backend. The bearer token is fixed at
// construction; there is no login state inside the client.
type Client struct {
	baseURL    string
	token      string
	healthPath string
	httpClient *http.Client
	limiter    *rate.Limiter

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client. A zero timeout means DefaultTimeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		healthPath: "/health",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache configures Redis caching for hours, special hours and tables.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// UseRateLimit caps outgoing requests. rps <= 0 disables the limiter.
func (c *Client) UseRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetHealthPath overrides the path probed by HealthCheck.
func (c *Client) SetHealthPath(path string) {
	if path != "" {
		c.healthPath = path
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, cachePrefix+key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, cachePrefix+key, data, c.cacheTTL).Err()
}

// invalidate drops every cached key starting with prefix.
func (c *Client) invalidate(ctx context.Context, prefix string) {
	if c.redis == nil {
		return
	}
	iter := c.redis.Scan(ctx, 0, cachePrefix+prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		_ = c.redis.Del(ctx, keys...).Err()
	}
}

func (c *Client) doGet(ctx context.Context, resource, endpoint string, out any) error {
	return c.doJSON(ctx, http.MethodGet, resource, endpoint, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, resource, endpoint string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(req)
	return c.do(req, resource, out)
}

func (c *Client) do(req *http.Request, resource string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return fmt.Errorf("%s %s: %w", req.Method, resource, err)
		}
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(req.Method, resource, "error", time.Since(started).Seconds())
		return fmt.Errorf("%s %s: %w", req.Method, resource, err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(req.Method, resource, strconv.Itoa(resp.StatusCode), time.Since(started).Seconds())

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", resource, err)
	}
	return nil
}

// decodeError reads {"detail": ...}. FastAPI-style validation errors carry a
// list in detail; those are passed through as raw JSON.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var wrap struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &wrap); err != nil || len(wrap.Detail) == 0 {
		return apiErr
	}
	var detail string
	if err := json.Unmarshal(wrap.Detail, &detail); err == nil {
		apiErr.Detail = detail
	} else {
		apiErr.Detail = string(wrap.Detail)
	}
	return apiErr
}

func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// HealthCheck checks if the backend answers on its health path.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.healthPath, nil), http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}
