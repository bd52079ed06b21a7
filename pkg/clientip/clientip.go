package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Header names inspected by GetIP, in priority order.
const (
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderXRealIP       = "X-Real-IP"
)

// GetIP returns the client address of r.
//
// The leftmost hop of X-Forwarded-For wins, then X-Real-IP, then the host part
// of RemoteAddr. Values that do not parse as an IP are skipped. If nothing
// parses, the raw RemoteAddr is returned.
func GetIP(r *http.Request) string {
	if xff := r.Header.Get(HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := normalize(first); ip != "" {
			return ip
		}
	}

	if ip := normalize(r.Header.Get(HeaderXRealIP)); ip != "" {
		return ip
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if ip := normalize(host); ip != "" {
			return ip
		}
	}

	if ip := normalize(r.RemoteAddr); ip != "" {
		return ip
	}

	return r.RemoteAddr
}

// normalize parses s as an IP address and returns its canonical form, or an
// empty string for invalid and unspecified addresses.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
