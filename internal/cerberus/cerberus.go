// Package cerberus is the request security gate in front of the API
// handlers. It composes the reputation store, the rate limiter and the
// sanitizer into a single per-request decision.
package cerberus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/argus/internal/config"
	"github.com/Wikid82/argus/internal/detect"
	"github.com/Wikid82/argus/internal/logger"
	"github.com/Wikid82/argus/internal/metrics"
	"github.com/Wikid82/argus/internal/models"
	"github.com/Wikid82/argus/internal/ratelimit"
	"github.com/Wikid82/argus/internal/reputation"
	"github.com/Wikid82/argus/internal/sanitize"
	"github.com/Wikid82/argus/internal/util"
)

// Context keys set by Middleware for downstream handlers.
const (
	SanitizedBodyKey = "sanitizedBody"
	ClientIPKey      = "clientIP"
)

// Verdict is the outcome of Inspect. Rejection is nil on the pass-through path.
type Verdict struct {
	IP        string
	Trusted   bool
	Raw       []byte
	Body      any
	Rejection *Rejection
}

// Cerberus provides the security checks (IP blocks, rate limits, request
// shape validation and payload sanitization) for every inbound request.
type Cerberus struct {
	cfg       config.SecurityConfig
	store     *reputation.Store
	limiter   *ratelimit.Limiter
	sanitizer *sanitize.Sanitizer
	trusted   matchList
}

// New creates a Cerberus instance around shared store and limiter.
func New(cfg config.SecurityConfig, store *reputation.Store, limiter *ratelimit.Limiter) *Cerberus {
	defaults := config.DefaultSecurityConfig()
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if cfg.DefaultRateLimit <= 0 {
		cfg.DefaultRateLimit = defaults.DefaultRateLimit
	}
	if cfg.DefaultRateWindow <= 0 {
		cfg.DefaultRateWindow = defaults.DefaultRateWindow
	}
	return &Cerberus{
		cfg:       cfg,
		store:     store,
		limiter:   limiter,
		sanitizer: sanitize.New(detect.NewDetector(store)),
		trusted:   buildMatchList(cfg.TrustedIPs),
	}
}

// IsEnabled returns whether the gate is switched on.
func (c *Cerberus) IsEnabled() bool {
	return c.cfg.Enabled
}

// Store exposes the reputation store for the admin API.
func (c *Cerberus) Store() *reputation.Store {
	return c.store
}

// Limiter exposes the rate limiter for the admin API.
func (c *Cerberus) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// Inspect runs the checks in order and stops at the first failure. Every
// failure except BLOCKED records exactly one security event.
func (c *Cerberus) Inspect(r *http.Request) Verdict {
	metrics.IncInspected()

	ip := ResolveClientIP(r.Header)
	v := Verdict{IP: ip, Trusted: c.trusted.contains(ip)}
	path := r.URL.Path
	ua := r.Header.Get("User-Agent")

	if !v.Trusted {
		if block := c.store.GetBlockInfo(ip); block != nil {
			v.Rejection = newRejection(KindBlocked, "Access temporarily blocked", map[string]interface{}{
				"blocked_until": block.ExpiresAt,
				"reason":        block.Reason,
			})
			return v
		}

		d := c.limiter.Decide(ip, c.cfg.DefaultRateLimit, c.cfg.DefaultRateWindow, path, ua)
		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			v.Rejection = newRejection(KindRateLimited, "Too many requests", map[string]interface{}{
				"limit":       d.Limit,
				"retry_after": retry,
			})
			return v
		}
	}

	mutating := isMutating(r.Method)
	if mutating && !isJSON(r.Header.Get("Content-Type")) {
		v.Rejection = c.invalid(KindInvalidContentType, "Content-Type must be application/json", ip, path, ua,
			"content-type: "+r.Header.Get("Content-Type"), nil)
		return v
	}

	if r.ContentLength > c.cfg.MaxBodyBytes {
		v.Rejection = c.tooLarge(r.ContentLength, ip, path, ua)
		return v
	}

	var raw []byte
	var readErr error
	if mutating && r.Body != nil {
		raw, readErr = io.ReadAll(io.LimitReader(r.Body, c.cfg.MaxBodyBytes+1))
		if int64(len(raw)) > c.cfg.MaxBodyBytes {
			v.Rejection = c.tooLarge(int64(len(raw)), ip, path, ua)
			return v
		}
	}

	if len(strings.TrimSpace(ua)) < c.cfg.MinUserAgentLength || ua == "" {
		v.Rejection = c.invalid(KindInvalidUserAgent, "Invalid or missing User-Agent", ip, path, ua,
			"user-agent: "+ua, nil)
		return v
	}

	if !mutating {
		return v
	}

	if readErr == nil {
		var body any
		body, readErr = decodeJSON(raw)
		if readErr == nil {
			v.Raw = raw
			v.Body = c.sanitizer.Object(body, detect.RequestContext{Endpoint: path, UserAgent: ua, IP: ip})
			return v
		}
	}
	v.Rejection = c.invalid(KindMalformedJSON, "Invalid JSON body", ip, path, ua,
		readErr.Error(), map[string]interface{}{"details": readErr.Error()})
	return v
}

// Middleware returns a Gin middleware that enforces the checks when enabled.
// On success the sanitized body is stored under SanitizedBodyKey and the
// original bytes are put back on the request body.
func (c *Cerberus) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !c.IsEnabled() {
			ctx.Next()
			return
		}

		v := c.Inspect(ctx.Request)
		ctx.Set(ClientIPKey, v.IP)

		if rej := v.Rejection; rej != nil {
			metrics.IncRejected(string(rej.Kind))
			logger.Component("cerberus").WithFields(map[string]interface{}{
				"decision": "block",
				"code":     string(rej.Kind),
				"ip":       v.IP,
				"method":   ctx.Request.Method,
				"path":     util.SanitizeForLog(ctx.Request.URL.Path),
			}).Warn("request rejected")
			if retry, ok := rej.Context["retry_after"]; ok {
				ctx.Header("Retry-After", fmt.Sprint(retry))
			}
			ctx.AbortWithStatusJSON(rej.Status, rej.Body())
			return
		}

		if v.Raw != nil {
			ctx.Request.Body = io.NopCloser(bytes.NewReader(v.Raw))
			ctx.Set(SanitizedBodyKey, v.Body)
		}
		ctx.Next()
	}
}

// SanitizedBody returns the body stored by Middleware.
func SanitizedBody(ctx *gin.Context) (any, bool) {
	return ctx.Get(SanitizedBodyKey)
}

func (c *Cerberus) invalid(kind ErrorKind, msg, ip, path, ua, payload string, context map[string]interface{}) *Rejection {
	c.store.TrackSecurityEvent(models.EventInvalidInput, ip, models.EventDetails{
		Endpoint:  path,
		UserAgent: ua,
		Payload:   payload,
	})
	return newRejection(kind, msg, context)
}

func (c *Cerberus) tooLarge(size int64, ip, path, ua string) *Rejection {
	return c.invalid(KindPayloadTooLarge, "Request body too large", ip, path, ua,
		fmt.Sprintf("body size %d exceeds %d", size, c.cfg.MaxBodyBytes),
		map[string]interface{}{"max_bytes": c.cfg.MaxBodyBytes})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

// decodeJSON parses a single JSON document, keeping numbers as json.Number so
// they pass through sanitization untouched. Panics are reported as errors.
func decodeJSON(raw []byte) (body any, err error) {
	defer func() {
		if r := recover(); r != nil {
			body, err = nil, fmt.Errorf("parse body: %v", r)
		}
	}()
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON document")
	}
	return body, nil
}
