package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/argus/internal/api/middleware"
	"github.com/Wikid82/argus/internal/cerberus"
	"github.com/Wikid82/argus/internal/detect"
	"github.com/Wikid82/argus/internal/models"
	"github.com/Wikid82/argus/internal/services"
	"github.com/Wikid82/argus/internal/util"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
	maxManualBlock    = 30 * 24 * time.Hour
)

// SecurityHandler serves the admin view of the security gate.
type SecurityHandler struct {
	cerb     *cerberus.Cerberus
	security *services.SecurityService
	now      func() time.Time
}

// NewSecurityHandler creates a SecurityHandler. security may be nil, in
// which case events are read from the in-memory history.
func NewSecurityHandler(cerb *cerberus.Cerberus, security *services.SecurityService) *SecurityHandler {
	return &SecurityHandler{cerb: cerb, security: security, now: time.Now}
}

type policyView struct {
	Pattern       string `json:"pattern"`
	MaxRequests   int    `json:"max_requests"`
	WindowSeconds int64  `json:"window_seconds"`
}

// GetStatus reports the gate configuration and current counters.
func (h *SecurityHandler) GetStatus(c *gin.Context) {
	store := h.cerb.Store()
	limiter := h.cerb.Limiter()
	esc := store.Policy()

	policies := limiter.Policies()
	views := make([]policyView, 0, len(policies))
	for _, p := range policies {
		views = append(views, policyView{Pattern: p.Pattern, MaxRequests: p.MaxRequests, WindowSeconds: int64(p.Window / time.Second)})
	}

	resp := gin.H{
		"enabled":       h.cerb.IsEnabled(),
		"rules_version": detect.RulesVersion,
		"escalation": gin.H{
			"threshold":              esc.Threshold,
			"window_seconds":         int64(esc.Window / time.Second),
			"block_duration_seconds": int64(esc.BlockDuration / time.Second),
			"kinds":                  esc.Kinds,
		},
		"rate_limits":      views,
		"active_blocks":    len(store.ActiveBlocks()),
		"tracked_counters": limiter.Len(),
	}

	if h.security != nil {
		counts, err := h.security.CountEventsSince(h.now().Add(-24 * time.Hour))
		if err != nil {
			middleware.GetRequestLogger(c).WithError(err).Error("failed to count security events")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load event counts"})
			return
		}
		resp["events_24h"] = counts
	}
	c.JSON(http.StatusOK, resp)
}

// ListEvents returns recent events, optionally for one ip.
func (h *SecurityHandler) ListEvents(c *gin.Context) {
	ip := ""
	if raw := c.Query("ip"); raw != "" {
		norm, ok := cerberus.NormalizeIP(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ip"})
			return
		}
		ip = norm
	}

	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxEventLimit)
	}

	var events []models.SecurityEvent
	if h.security != nil {
		var err error
		events, err = h.security.ListEvents(ip, limit)
		if err != nil {
			middleware.GetRequestLogger(c).WithError(err).Error("failed to list security events")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
			return
		}
	} else {
		events = h.cerb.Store().RecentEvents(ip, limit)
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ListBlocks returns the blocks currently in force.
func (h *SecurityHandler) ListBlocks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"blocks": h.cerb.Store().ActiveBlocks()})
}

// GetBlock returns the active block for :ip.
func (h *SecurityHandler) GetBlock(c *gin.Context) {
	ip, ok := cerberus.NormalizeIP(c.Param("ip"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ip"})
		return
	}
	block := h.cerb.Store().GetBlockInfo(ip)
	if block == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"block":             block,
		"remaining_seconds": int64(block.Remaining(h.now()) / time.Second),
	})
}

type createBlockRequest struct {
	IP              string `json:"ip" binding:"required"`
	Reason          string `json:"reason"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// CreateBlock blocks an ip by hand. The duration defaults to the escalation
// block duration.
func (h *SecurityHandler) CreateBlock(c *gin.Context) {
	var req createBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ip, ok := cerberus.NormalizeIP(req.IP)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ip"})
		return
	}

	store := h.cerb.Store()
	d := store.Policy().BlockDuration
	if req.DurationSeconds != 0 {
		if req.DurationSeconds < 0 || req.DurationSeconds > int64(maxManualBlock/time.Second) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds out of range"})
			return
		}
		d = time.Duration(req.DurationSeconds) * time.Second
	}
	if d <= 0 || d > maxManualBlock {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds out of range"})
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual block"
	}

	block, err := store.TemporaryIPBlock(ip, util.TruncateForLog(reason, 200), d)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	middleware.GetRequestLogger(c).WithFields(map[string]interface{}{
		"ip":      ip,
		"subject": c.GetString("subject"),
	}).Info("manual ip block")
	c.JSON(http.StatusCreated, gin.H{"block": block})
}

// DeleteBlock lifts the block on :ip.
func (h *SecurityHandler) DeleteBlock(c *gin.Context) {
	ip, ok := cerberus.NormalizeIP(c.Param("ip"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ip"})
		return
	}
	if !h.cerb.Store().Unblock(ip) {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	middleware.GetRequestLogger(c).WithFields(map[string]interface{}{
		"ip":      ip,
		"subject": c.GetString("subject"),
	}).Info("ip unblocked")
	c.JSON(http.StatusOK, gin.H{"message": "unblocked", "ip": ip})
}
