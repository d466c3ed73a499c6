package cerberus

import (
	"net/http"
	"strings"

	"github.com/seancfoley/ipaddress-go/ipaddr"

	"github.com/Wikid82/argus/internal/logger"
	"github.com/Wikid82/argus/internal/reputation"
)

// UnknownIP is used when no forwarding header identifies the client. It is
// rate limited like any address but never escalated to a block.
const UnknownIP = reputation.UnknownIP

// ResolveClientIP takes the first X-Forwarded-For entry, then X-Real-IP,
// then falls back to UnknownIP. Parseable addresses are canonicalised so
// equivalent spellings share counters and blocks.
func ResolveClientIP(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return canonicalIP(first)
		}
	}
	if realIP := strings.TrimSpace(h.Get("X-Real-IP")); realIP != "" {
		return canonicalIP(realIP)
	}
	return UnknownIP
}

func canonicalIP(raw string) string {
	if ip, ok := NormalizeIP(raw); ok {
		return ip
	}
	return raw
}

// NormalizeIP returns the canonical form of a single IPv4 or IPv6 address.
// Ranges, prefixes and host names are rejected.
func NormalizeIP(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	addr, err := ipaddr.NewIPAddressString(raw).ToAddress()
	if err != nil || addr == nil || addr.IsPrefixed() || addr.IsMultiple() {
		return "", false
	}
	return addr.String(), true
}

// matchList holds trusted addresses and CIDR blocks on per-family tries.
type matchList struct {
	v4   *ipaddr.IPv4AddressTrie
	v6   *ipaddr.IPv6AddressTrie
	size int
}

func buildMatchList(entries []string) matchList {
	list := matchList{
		v4: &ipaddr.IPv4AddressTrie{},
		v6: &ipaddr.IPv6AddressTrie{},
	}
	for _, entry := range entries {
		if entry = strings.TrimSpace(entry); entry == "" {
			continue
		}
		addr, err := ipaddr.NewIPAddressString(entry).ToAddress()
		if err != nil || addr == nil {
			logger.Component("cerberus").WithField("entry", entry).Warn("ignoring invalid trusted ip entry")
			continue
		}
		switch {
		case addr.IsIPv4():
			list.v4.Add(addr.ToIPv4())
		case addr.IsIPv6():
			list.v6.Add(addr.ToIPv6())
		default:
			continue
		}
		list.size++
	}
	return list
}

func (m matchList) contains(ip string) bool {
	if m.size == 0 || ip == "" || ip == UnknownIP {
		return false
	}
	addr, err := ipaddr.NewIPAddressString(ip).ToAddress()
	if err != nil || addr == nil {
		return false
	}
	return (addr.IsIPv4() && m.v4.ElementContains(addr.ToIPv4())) ||
		(addr.IsIPv6() && m.v6.ElementContains(addr.ToIPv6()))
}
