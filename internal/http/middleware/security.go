// Security headers for a read-only search API that serves two very different
// response shapes: small JSON documents and a long-lived SSE stream.
//
// The split matters for caching. JSON responses may be marked no-store, but
// the event stream must instead be no-cache: an intermediary that caches or
// buffers /search frames would destroy the arrival-order streaming the whole
// service exists to provide. StreamPaths lets the router name those routes so
// the middleware applies the right posture per request.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// defaultHSTSMaxAge is used when HSTS is enabled without an explicit lifetime.
const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures the headers emitted by SecurityHeaders.
//
// EnableHSTS emits Strict-Transport-Security for HTTPS requests only; enable
// it solely when traffic is HTTPS end-to-end, proxy hop included. HSTSMaxAge
// defaults to 180 days when zero.
//
// NoStore adds Cache-Control: no-store (plus legacy Pragma/Expires) to
// non-stream responses. Routes listed in StreamPaths are exempt and receive
// Cache-Control: no-cache instead, whether or not NoStore is set.
//
// EnablePolicy adds browser feature restrictions (Permissions-Policy and
// X-Permitted-Cross-Domain-Policies); harmless for non-browser clients.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
	StreamPaths  []string // routes serving text/event-stream, e.g. /api/v1/search
}

// SecurityHeaders returns a Gin middleware that hardens every response.
//
// Always set: X-Content-Type-Options: nosniff, X-Frame-Options: DENY,
// Referrer-Policy: no-referrer. Cache posture, feature policies and HSTS
// follow SecurityOptions. When an earlier middleware placed an X-Request-ID
// on the response, it is added to Access-Control-Expose-Headers so browser
// clients can correlate a failed search with server logs.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hstsValue := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	streams := make(map[string]struct{}, len(opt.StreamPaths))
	for _, p := range opt.StreamPaths {
		streams[p] = struct{}{}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if _, isStream := streams[c.Request.URL.Path]; isStream {
			// no-store would invite proxies to drop the response wholesale;
			// no-cache keeps the stream deliverable but never cached.
			h.Set("Cache-Control", "no-cache")
		} else if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		// Never advertise HSTS on plain HTTP.
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		if rid := h.Get("X-Request-ID"); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			switch cur := h.Get(hdr); {
			case cur == "":
				h.Set(hdr, "X-Request-ID")
			case !strings.Contains(cur, "X-Request-ID"):
				h.Set(hdr, cur+", X-Request-ID")
			}
		}

		c.Next()
	}
}

// isHTTPS reports whether the request arrived over HTTPS, either terminated
// here (r.TLS != nil) or at a proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
