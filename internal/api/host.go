package api

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/Imziyasser00/calis-blog-sub001/internal/telemetry"
)

// HostConfig drives the canonical host redirect.
type HostConfig struct {
	Canonical       string
	PreviewSuffixes []string
	BypassPrefixes  []string
}

// CanonicalHost permanently redirects requests for any other host to
// https://<Canonical> with path and query preserved. Preview hosts and
// bypass paths are served as-is.
func CanonicalHost(cfg HostConfig) func(http.Handler) http.Handler {
	canonical := strings.ToLower(strings.TrimSpace(cfg.Canonical))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if canonical == "" || hasAnyPrefix(r.URL.Path, cfg.BypassPrefixes) {
				next.ServeHTTP(w, r)
				return
			}
			host := requestHost(r)
			if host == canonical || hasAnySuffix(host, cfg.PreviewSuffixes) {
				next.ServeHTTP(w, r)
				return
			}
			target := url.URL{
				Scheme:   "https",
				Host:     canonical,
				Path:     r.URL.Path,
				RawPath:  r.URL.RawPath,
				RawQuery: r.URL.RawQuery,
			}
			telemetry.ObserveCanonicalRedirect()
			http.Redirect(w, r, target.String(), http.StatusPermanentRedirect)
		})
	}
}

func requestHost(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if suf != "" && strings.HasSuffix(s, strings.ToLower(suf)) {
			return true
		}
	}
	return false
}
