// Package security resolves client addresses behind proxies and sets the
// response headers of the JSON API.
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"
)

// ClientIPResolver extracts the client address used for rate limiting.
// Forwarding headers are honoured only when the direct peer is a trusted
// proxy, so a client cannot pick its own rate limit bucket.
type ClientIPResolver struct {
	trustedProxies []netip.Prefix
	spoofed        atomic.Int64
}

// NewClientIPResolver trusts loopback and private networks plus any extra
// CIDRs given.
func NewClientIPResolver(extra ...string) (*ClientIPResolver, error) {
	r := &ClientIPResolver{}
	for _, cidr := range append([]string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}, extra...) {
		if err := r.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// AddTrustedProxy adds a trusted proxy network
func (r *ClientIPResolver) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	r.trustedProxies = append(r.trustedProxies, p.Masked())
	return nil
}

// ClientIP returns the first forwarded address when the peer is trusted,
// otherwise the peer address.
func (r *ClientIPResolver) ClientIP(req *http.Request) string {
	direct, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		direct = req.RemoteAddr
	}
	peer, err := netip.ParseAddr(direct)
	if err != nil {
		return direct
	}

	if !r.isTrustedProxy(peer) {
		if req.Header.Get("X-Forwarded-For") != "" || req.Header.Get("X-Real-IP") != "" {
			r.spoofed.Add(1)
		}
		return direct
	}

	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}
	if xri := strings.TrimSpace(req.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.String()
		}
	}
	return direct
}

func (r *ClientIPResolver) isTrustedProxy(ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, p := range r.trustedProxies {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// IgnoredForwardHeaders counts requests from untrusted peers that carried
// forwarding headers.
func (r *ClientIPResolver) IgnoredForwardHeaders() int64 {
	return r.spoofed.Load()
}
