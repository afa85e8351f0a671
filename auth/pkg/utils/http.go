package utils

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

const BearerPrefix = "Bearer "

// BearerToken strips the "Bearer " scheme. It reports false for other schemes and
// empty tokens.
func BearerToken(value string) (string, bool) {
	if len(value) < len(BearerPrefix) || !strings.EqualFold(value[:len(BearerPrefix)], BearerPrefix) {
		return "", false
	}

	token := strings.TrimSpace(value[len(BearerPrefix):])
	if token == "" {
		return "", false
	}

	return token, true
}

// ClientIP returns the host part of the request's remote address. Forwarding
// headers are not consulted here; a trusted proxy middleware rewrites RemoteAddr
// before this is called.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// ParseTrustedProxies parses CIDRs or bare IPs.
func ParseTrustedProxies(list []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(list))
	for _, entry := range list {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}

		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		nets = append(nets, ipNet)
	}

	return nets, nil
}

// FromTrustedProxy reports whether the connection peer of r is inside one of nets.
func FromTrustedProxy(r *http.Request, nets []*net.IPNet) bool {
	ip := net.ParseIP(ClientIP(r))
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
