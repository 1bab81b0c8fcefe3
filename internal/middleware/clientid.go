package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"log/slog"
)

type contextKey string

const ClientIPKey contextKey = "client_ip"

// Proxies is the set of reverse proxies whose forwarding headers are trusted.
type Proxies []netip.Prefix

// ParseProxies reads CIDRs or bare addresses. Invalid entries are logged and skipped.
func ParseProxies(list []string) Proxies {
	var res Proxies
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			res = append(res, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			slog.Default().Error("can't parse trusted proxy",
				slog.String("proxy", s),
				slog.String("err", err.Error()),
			)
			continue
		}
		addr = addr.Unmap()
		res = append(res, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return res
}

func (p Proxies) trusts(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, pr := range p {
		if pr.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIdentifier stores the client IP in the request context. Forwarding
// headers are only read when the peer is one of the trusted proxies.
func ClientIdentifier(trusted Proxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ClientIPKey, trusted.clientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// clientIP walks X-Forwarded-For from the nearest hop and returns the first
// address that is not a trusted proxy.
func (p Proxies) clientIP(r *http.Request) string {
	peer := remoteIP(r)
	if !p.trusts(peer) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !p.trusts(hop) {
				return hop
			}
			peer = hop
		}
		return peer
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	// Cloudflare
	if cfip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cfip != "" {
		return cfip
	}
	return peer
}

// GetClientIP retrieves the client IP from context
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return "unknown"
}
