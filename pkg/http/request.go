package http

import (
	"net"
	"net/http"
	"strings"
)

// UnknownIP is the terminal fallback when no client address can be derived.
const UnknownIP = "unknown"

// ExtractClientIP extracts the best-effort client IP address from the request.
//
// Order of precedence:
//  1. CF-Connecting-IP (set by the CDN edge, one address)
//  2. X-Forwarded-For (first valid address in the chain)
//  3. X-Real-IP
//  4. RemoteAddr
//  5. "unknown"
//
// The result keys the login ledger and the gateway rate limiter, so it must
// always be non-empty.
func ExtractClientIP(r *http.Request) string {
	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" && isValidIP(cf) {
		return cf
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			ip = strings.TrimSpace(ip)
			if isValidIP(ip) {
				return ip
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && isValidIP(xri) {
		return xri
	}

	if ip := getRemoteAddr(r); ip != "" {
		return ip
	}

	return UnknownIP
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return ""
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address
func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
