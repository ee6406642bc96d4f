package gateway

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP keys requests by caller address. With trustedHops proxies in front,
// the address that many entries from the right of X-Forwarded-For is used;
// everything further left is client-controlled and ignored.
func ClientIP(trustedHops int) func(*http.Request) string {
	return func(r *http.Request) string {
		peer := hostOnly(r.RemoteAddr)
		if trustedHops <= 0 {
			return peer
		}

		var hops []string
		for _, v := range r.Header.Values("X-Forwarded-For") {
			for _, part := range strings.Split(v, ",") {
				if p := strings.TrimSpace(part); p != "" {
					hops = append(hops, p)
				}
			}
		}
		if len(hops) == 0 {
			return peer
		}
		idx := len(hops) - trustedHops
		if idx < 0 {
			idx = 0
		}
		return hostOnly(hops[idx])
	}
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
