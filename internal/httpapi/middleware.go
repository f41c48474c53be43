package httpapi

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"bookstore-core/internal/logger"
	"bookstore-core/internal/order"
	"bookstore-core/internal/session"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Resolver turns an Authorization header into a session.
type Resolver interface {
	Resolve(header string) (*session.Session, error)
}

// Authenticate resolves the bearer token into a session on the request
// context. Anonymous or invalid tokens continue with no session; handlers
// that need a user fail with NotLoggedIn.
func Authenticate(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := resolver.Resolve(accessToken(r))
			if err != nil {
				logger.FromCtx(r.Context()).Debug("token rejected", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := session.WithSession(r.Context(), sess)
			ctx = logger.WithUserID(ctx, sess.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// accessToken prefers the Authorization header and falls back to the
// access_token cookie set by browser clients.
func accessToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return header
	}
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return "Bearer " + cookie.Value
	}
	return ""
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if _, err := session.Require(sess); err != nil {
			writeError(w, r, err)
			return
		}
		if !sess.IsAdmin() {
			writeError(w, r, order.ErrAdminOnly)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Rate limit tiers
const (
	// checkout and payment
	limitStrict = rate.Limit(2)
	burstStrict = 5

	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	visitorTTL = 3 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller and tier.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{visitors: make(map[string]*visitor), now: time.Now}
}

func (l *RateLimiter) get(key string, r rate.Limit, b int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r, b)}
		l.visitors[key] = v
	}
	v.lastSeen = l.now()
	return v.limiter
}

// Prune drops visitors idle for longer than the visitor TTL.
func (l *RateLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if l.now().Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, key)
		}
	}
}

// Run prunes idle visitors every minute until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, burst, tier := rateTier(r)

		var identity string
		if sess := session.FromContext(r.Context()); sess != nil && sess.UserID != "" {
			identity = "user:" + sess.UserID
		} else if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" {
			identity = "device:" + deviceID
		} else {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			identity = "ip:" + ip
		}

		if !l.get(identity+":"+tier, limit, burst).Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Code:    "rate_limited",
				Message: http.StatusText(http.StatusTooManyRequests),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func rateTier(r *http.Request) (rate.Limit, int, string) {
	if r.Method == http.MethodPost && r.URL.Path == "/checkout" {
		return limitStrict, burstStrict, "strict"
	}
	return limitGeneral, burstGeneral, "general"
}
