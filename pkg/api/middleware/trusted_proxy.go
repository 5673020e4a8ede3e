package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ParseTrustedProxies parses CIDR ranges or bare IPs. Bare IPs become
// single-host networks.
func ParseTrustedProxies(entries []string) ([]*net.IPNet, error) {
	var networks []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy IP %q", entry)
			}
			if ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy CIDR %q: %w", entry, err)
		}
		networks = append(networks, network)
	}
	return networks, nil
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// isTrusted reports whether remoteAddr falls in any of networks.
func isTrusted(remoteAddr string, networks []*net.IPNet) bool {
	ip := net.ParseIP(remoteHost(remoteAddr))
	if ip == nil {
		return false
	}
	for _, n := range networks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns a ClientIDFunc that honours X-Real-IP and the leftmost
// X-Forwarded-For entry only when the peer is a trusted proxy.
func ClientIP(trusted []*net.IPNet) ClientIDFunc {
	return func(r *http.Request) string {
		if len(trusted) > 0 && isTrusted(r.RemoteAddr, trusted) {
			if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
				return ip.String()
			}
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
					return ip.String()
				}
			}
		}
		return remoteHost(r.RemoteAddr)
	}
}
