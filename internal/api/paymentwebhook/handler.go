package paymentwebhook

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"billing-app/internal/alerts"
	"billing-app/internal/domain/audit"
)

// Handler is the HTTP face of the webhook. Response codes follow the
// processor's retry contract: 2xx acknowledges (including duplicates and
// held mismatches), 5xx asks for redelivery.
type Handler struct {
	Processor   *Processor
	Failures    *alerts.FailureWindow
	AllowedCIDR []*net.IPNet
	Log         *zap.Logger
}

// ParseAllowlist turns configured CIDRs into networks. Bare IPs get a full
// mask. An empty allowlist disables the check (local development).
func ParseAllowlist(cidrs []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, raw := range cidrs {
		if raw == "" {
			continue
		}
		if _, network, err := net.ParseCIDR(raw); err == nil {
			nets = append(nets, network)
			continue
		}
		ip := net.ParseIP(raw)
		if ip == nil {
			return nil, &net.ParseError{Type: "IP address or CIDR", Text: raw}
		}
		mask := net.CIDRMask(32, 32)
		if ip.To4() == nil {
			mask = net.CIDRMask(128, 128)
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: mask})
	}
	return nets, nil
}

func (h *Handler) allowed(ip net.IP) bool {
	if len(h.AllowedCIDR) == 0 {
		return true
	}
	for _, network := range h.AllowedCIDR {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Receive handles POST /webhooks/payments. Every outcome feeds the failure
// window, rejected deliveries included, so the rate is measured over all
// traffic the processor sends.
func (h *Handler) Receive(c *gin.Context) {
	now := time.Now().UTC()

	ip := net.ParseIP(c.ClientIP())
	if ip == nil || !h.allowed(ip) {
		h.Processor.Emitter.Raise(audit.SuspiciousIP,
			"webhook from unlisted address "+c.ClientIP(),
			map[string]string{"ip": c.ClientIP()})
		h.Failures.Observe(false, now)
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}

	var n Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		h.Failures.Observe(false, now)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	out := h.Processor.process(n, now)
	h.Failures.Observe(out.retryable, now)

	if out.retryable {
		c.JSON(http.StatusInternalServerError, gin.H{"error": out.detail})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received", "detail": out.detail})
}
