package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/watchfi/storefront/api/responses"
	"github.com/watchfi/storefront/api/validators"
	pkgerrors "github.com/watchfi/storefront/pkg/errors"
	"github.com/watchfi/storefront/pkg/logger"
)

type rateLimiterStore interface {
	HitWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	RateLimitKey(parts ...string) string
}

// IdentityFunc extracts the caller identity a counter tracks. The body is nil
// unless the policy reads it.
type IdentityFunc func(r *http.Request, body []byte) string

type rateCounter struct {
	scope    string
	limit    int
	identify IdentityFunc
	// hashed identities keep usernames out of redis keys and logs
	hashed bool
}

// RateLimitPolicy is a named set of counters sharing one fixed window.
type RateLimitPolicy struct {
	name      string
	window    time.Duration
	counters  []rateCounter
	readsBody bool
}

// NewLoginRateLimitPolicy counts attempts per IP and per username.
func NewLoginRateLimitPolicy(window time.Duration, ipLimit, usernameLimit int) RateLimitPolicy {
	return RateLimitPolicy{
		name:   "login",
		window: window,
		counters: []rateCounter{
			{scope: "ip", limit: ipLimit, identify: func(r *http.Request, _ []byte) string { return clientIP(r) }},
			{scope: "username", limit: usernameLimit, identify: loginUsername, hashed: true},
		},
		readsBody: usernameLimit > 0,
	}
}

// NewSessionRateLimitPolicy counts requests per shopper session.
func NewSessionRateLimitPolicy(name string, window time.Duration, limit int) RateLimitPolicy {
	return RateLimitPolicy{
		name:   strings.ToLower(strings.TrimSpace(name)),
		window: window,
		counters: []rateCounter{{
			scope: "session",
			limit: limit,
			identify: func(r *http.Request, _ []byte) string {
				return SessionIDFromContext(r.Context())
			},
		}},
	}
}

func (p RateLimitPolicy) label() string {
	if p.name == "" {
		return "default"
	}
	return p.name
}

func (p RateLimitPolicy) active() []rateCounter {
	if p.window <= 0 {
		return nil
	}
	var out []rateCounter
	for _, c := range p.counters {
		if c.limit > 0 && c.identify != nil {
			out = append(out, c)
		}
	}
	return out
}

// RateLimit rejects a request with 429 once any counter of policy passes its
// limit inside the window. Retry-After carries the seconds left.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	counters := policy.active()
	return func(next http.Handler) http.Handler {
		if len(counters) == 0 || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if policy.readsBody && r.Body != nil {
				var err error
				body, err = io.ReadAll(io.LimitReader(r.Body, validators.MaxBodyBytes+1))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			for _, counter := range counters {
				identity := counter.identify(r, body)
				if identity == "" {
					continue
				}
				if counter.hashed {
					identity = hashValue(identity)
				}
				count, resetIn, err := store.HitWindow(ctx, store.RateLimitKey(policy.label(), counter.scope, identity), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(counter.limit) {
					rejectRateLimited(ctx, logg, w, policy, counter, identity, count, resetIn)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, counter rateCounter, identity string, count int64, resetIn time.Duration) {
	retryAfter := int(math.Ceil(resetIn.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":      policy.label(),
			"scope":       counter.scope,
			"identity":    identity,
			"attempts":    count,
			"limit":       counter.limit,
			"retry_after": retryAfter,
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "Too many requests. Please retry shortly."))
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func loginUsername(_ *http.Request, payload []byte) string {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Username))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
