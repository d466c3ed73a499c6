package services

import (
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/containrrr/shoutrrr"

	"github.com/Wikid82/argus/internal/logger"
	"github.com/Wikid82/argus/internal/models"
	"github.com/Wikid82/argus/internal/version"
)

// SendFunc delivers a message to a shoutrrr service URL.
type SendFunc func(url, message string) error

// NotificationService fans block alerts out to the configured shoutrrr URLs.
type NotificationService struct {
	urls []string
	send SendFunc
}

// NewNotificationService returns a service that sends to urls. A nil send
// uses shoutrrr.Send.
func NewNotificationService(urls []string, send SendFunc) *NotificationService {
	if send == nil {
		send = func(url, message string) error { return shoutrrr.Send(url, message) }
	}
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	return &NotificationService{urls: cleaned, send: send}
}

// Enabled reports whether any destination is configured.
func (s *NotificationService) Enabled() bool {
	return s != nil && len(s.urls) > 0
}

// NotifyBlock sends an alert for b to every destination and waits for the
// deliveries. Failed destinations are logged and joined into the result.
func (s *NotificationService) NotifyBlock(b models.BlockRecord) error {
	if !s.Enabled() {
		return nil
	}
	title := fmt.Sprintf("%s: blocked %s", version.Name, b.IP)
	// Use newline for better formatting in chat apps
	msg := fmt.Sprintf("%s\n\nReason: %s\nUntil: %s", title, b.Reason, b.ExpiresAt.UTC().Format(time.RFC3339))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, url := range s.urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			err := s.deliver(url, msg)
			if err == nil {
				return
			}
			logger.Component("notify").WithFields(map[string]interface{}{
				"service": serviceName(url),
				"error":   err.Error(),
			}).Warn("failed to send block alert")
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(url)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (s *NotificationService) deliver(url, msg string) error {
	// Validate HTTP/HTTPS destinations to reduce SSRF risk
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		if _, err := validateWebhookURL(url); err != nil {
			return err
		}
	}
	return s.send(url, msg)
}

// serviceName returns the scheme of a service URL so secrets in the rest of
// the URL never reach the logs.
func serviceName(url string) string {
	if i := strings.Index(url, "://"); i > 0 {
		return url[:i]
	}
	return "unknown"
}

// isPrivateIP returns true for RFC1918, loopback and link-local addresses.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate()
}

// validateWebhookURL parses and validates webhook URLs and ensures
// the resolved addresses are not private/local.
func validateWebhookURL(raw string) (*neturl.URL, error) {
	u, err := neturl.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("missing host")
	}

	// Allow explicit loopback/localhost addresses for local tests.
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return u, nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return nil, fmt.Errorf("disallowed host IP: %s", ip.String())
		}
	}
	return u, nil
}
