// Package clientip derives a canonical client identifier from proxy headers
// and the connection remote address.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

const (
	// HeaderForwardedFor carries the proxy chain, originating client first.
	HeaderForwardedFor = "X-Forwarded-For"
	// HeaderRealIP carries a single client address set by a proxy.
	HeaderRealIP = "X-Real-IP"

	// Localhost groups loopback and unidentifiable traffic under one key.
	Localhost = "localhost"

	mappedIPv4Prefix = "::ffff:"
)

// Resolve returns the client identifier for a request described by headers
// and the socket address fallback. It never returns an empty string.
func Resolve(headers http.Header, fallback string) string {
	ip := ""
	if forwarded := headerValue(headers, HeaderForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		ip = strings.TrimSpace(first)
	} else if realIP := headerValue(headers, HeaderRealIP); realIP != "" {
		ip = strings.TrimSpace(realIP)
	} else {
		ip = stripPort(fallback)
	}

	return normalize(ip)
}

// FromRequest resolves the client identifier of r. Proxy headers are only
// consulted when trustHeaders is set.
func FromRequest(r *http.Request, trustHeaders bool) string {
	if r == nil {
		return Localhost
	}
	if !trustHeaders {
		return Resolve(nil, r.RemoteAddr)
	}
	return Resolve(r.Header, r.RemoteAddr)
}

func headerValue(headers http.Header, key string) string {
	if headers == nil {
		return ""
	}
	return headers.Get(key)
}

func stripPort(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func normalize(ip string) string {
	if len(ip) >= len(mappedIPv4Prefix) && strings.EqualFold(ip[:len(mappedIPv4Prefix)], mappedIPv4Prefix) {
		ip = ip[len(mappedIPv4Prefix):]
	}
	switch ip {
	case "", "::1", "127.0.0.1":
		return Localhost
	}
	return ip
}
