package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/farmportal/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimit is a token bucket: Requests per Window, with Burst requests
// available at once.
type RateLimit struct {
	Requests int           `mapstructure:"requests" validate:"gt=0"`
	Window   time.Duration `mapstructure:"window" validate:"gt=0"`
	Burst    int           `mapstructure:"burst" validate:"gt=0"`
}

// Default profiles. Credential endpoints get the tightest bucket.
var (
	// LoginLimit guards password and TOTP verification.
	LoginLimit = RateLimit{Requests: 5, Window: time.Minute, Burst: 5}

	// TokenLimit guards refresh and logout.
	TokenLimit = RateLimit{Requests: 20, Window: time.Minute, Burst: 20}

	// SessionLimit guards bearer authenticated reads.
	SessionLimit = RateLimit{Requests: 120, Window: time.Minute, Burst: 60}

	// ProbeLimit guards health and metrics endpoints.
	ProbeLimit = RateLimit{Requests: 1000, Window: time.Minute, Burst: 1000}
)

func (l RateLimit) limit() rate.Limit {
	return rate.Limit(float64(l.Requests) / l.Window.Seconds())
}

// KeyExtractor derives the bucket key for a request. An empty key bypasses
// the limiter.
type KeyExtractor func(*http.Request) string

// RemoteIPKeyExtractor keys on the connection peer address.
func RemoteIPKeyExtractor(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ForwardedIPKeyExtractor prefers the first X-Forwarded-For hop, then
// X-Real-IP. Only use it behind a proxy that overwrites those headers.
func ForwardedIPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return RemoteIPKeyExtractor(r)
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// JSONFieldKeyExtractor keys on a top level string field of a JSON body. The
// body is restored so the handler can decode it again. Identifiers are
// compared case-insensitively, so the key is lowercased.
func JSONFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil {
			return ""
		}

		var fields map[string]json.RawMessage
		if json.Unmarshal(raw, &fields) != nil {
			return ""
		}
		var v string
		if json.Unmarshal(fields[field], &v) != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// limiterSet holds one bucket per key and sweeps idle buckets.
type limiterSet struct {
	cfg RateLimit

	mu        sync.Mutex
	buckets   map[string]*rate.Limiter
	lastSweep time.Time
}

const sweepInterval = 5 * time.Minute

func newLimiterSet(cfg RateLimit) *limiterSet {
	return &limiterSet{
		cfg:       cfg,
		buckets:   make(map[string]*rate.Limiter),
		lastSweep: time.Now(),
	}
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now := time.Now(); now.Sub(s.lastSweep) >= sweepInterval {
		s.lastSweep = now
		for k, l := range s.buckets {
			// A full bucket has been idle long enough to forget.
			if l.TokensAt(now) >= float64(s.cfg.Burst) {
				delete(s.buckets, k)
			}
		}
	}

	l, ok := s.buckets[key]
	if !ok {
		l = rate.NewLimiter(s.cfg.limit(), s.cfg.Burst)
		s.buckets[key] = l
	}
	return l
}

// RateLimitMiddleware rejects requests with 429 once the bucket for their
// key is empty.
func RateLimitMiddleware(cfg RateLimit, key KeyExtractor) Middleware {
	set := newLimiterSet(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := set.get(k)
			now := time.Now()
			if limiter.AllowN(now, 1) {
				next.ServeHTTP(w, r)
				return
			}

			res := limiter.ReserveN(now, 1)
			retryAfter := max(int(res.DelayFrom(now).Round(time.Second).Seconds()), 1)
			res.CancelAt(now)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)

			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limited",
				"error_description": "too many requests, retry later",
			})
		})
	}
}

// RateLimitByIP limits each peer address.
func RateLimitByIP(cfg RateLimit) Middleware {
	return RateLimitMiddleware(cfg, RemoteIPKeyExtractor)
}

// RateLimitBySubject limits each authenticated principal, falling back to
// the peer address before authentication has run.
func RateLimitBySubject(cfg RateLimit) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", SubjectKeyExtractor, RemoteIPKeyExtractor))
}

// RateLimitByIPAndIdentifier limits each (peer, identifier) pair so one
// address cannot grind passwords for a single account.
func RateLimitByIPAndIdentifier(cfg RateLimit, field string) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", RemoteIPKeyExtractor, JSONFieldKeyExtractor(field)))
}
