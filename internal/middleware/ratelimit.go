package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"telemetry-analyzer/internal/metrics"
)

// Counter counts hits per key within a fixed window.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, reset time.Duration, err error)
}

type RateLimiterConfig struct {
	Counter   Counter
	Limit     int
	Window    time.Duration
	KeyPrefix string
	// TrustedProxies lists the peers whose X-Forwarded-For header is
	// believed. Requests from any other peer are keyed by RemoteAddr.
	TrustedProxies []netip.Prefix
	// Extractor identifies the client; defaults to clientIP.
	Extractor func(r *http.Request) string
	Logger    *zap.Logger
}

// NewRateLimiter rejects requests with 429 once a client exceeds Limit
// requests in Window. When the counter store fails the request is let
// through.
func NewRateLimiter(cfg RateLimiterConfig) func(http.Handler) http.Handler {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:"
	}
	if cfg.Extractor == nil {
		trusted := cfg.TrustedProxies
		cfg.Extractor = func(r *http.Request) string { return clientIP(r, trusted) }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := cfg.Extractor(r)
			if id == "" {
				id = "anonymous"
			}
			key := cfg.KeyPrefix + id

			count, reset, err := cfg.Counter.Hit(r.Context(), key, cfg.Window)
			if err != nil {
				cfg.Logger.Warn("rate limiter unavailable", zap.Error(err), zap.String("key", key))
				next.ServeHTTP(w, r)
				return
			}

			resetSec := int(reset.Seconds())
			if resetSec < 0 {
				resetSec = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSec))

			if count > int64(cfg.Limit) {
				metrics.RateLimited.Inc()
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(resetSec))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"detail": fmt.Sprintf("rate limit of %d requests per %s exceeded", cfg.Limit, cfg.Window),
				})
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(cfg.Limit)-count, 10))
			next.ServeHTTP(w, r)
		})
	}
}

// ParseCIDRs parses proxy networks. A bare address is taken as a single
// host.
func ParseCIDRs(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !strings.Contains(v, "/") {
			addr, err := netip.ParseAddr(v)
			if err != nil {
				return nil, fmt.Errorf("parse %q: %w", v, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(v)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", v, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

// clientIP is the immediate peer address, or the first X-Forwarded-For
// entry when the peer is a trusted proxy.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := remoteHost(r.RemoteAddr)

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" || !isTrusted(peer, trusted) {
		return peer
	}
	first := strings.TrimSpace(strings.Split(xff, ",")[0])
	if first == "" {
		return peer
	}
	return first
}

func remoteHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
