package auth

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter throttles login attempts per client IP.
type LoginLimiter struct {
	mu      sync.Mutex
	every   time.Duration
	burst   int
	clients map[string]*visitor
	now     func() time.Time
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLoginLimiter allows perMinute attempts per IP, with the same burst.
// perMinute <= 0 disables limiting.
func NewLoginLimiter(perMinute int) *LoginLimiter {
	l := &LoginLimiter{clients: map[string]*visitor{}, now: time.Now, burst: perMinute}
	if perMinute > 0 {
		l.every = time.Minute / time.Duration(perMinute)
	}
	return l
}

// Allow reports whether ip may attempt another login now.
func (l *LoginLimiter) Allow(ip string) bool {
	if l.every == 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	v, ok := l.clients[ip]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.clients[ip] = v
	}
	v.seen = now
	l.prune(now)
	return v.lim.AllowN(now, 1)
}

// prune drops visitors idle for more than ten minutes.
func (l *LoginLimiter) prune(now time.Time) {
	if len(l.clients) < 1024 {
		return
	}
	for ip, v := range l.clients {
		if now.Sub(v.seen) > 10*time.Minute {
			delete(l.clients, ip)
		}
	}
}

// Middleware answers 429 once a client exceeds its allowance.
func (l *LoginLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "Too many login attempts")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP uses RemoteAddr. Forwarding headers only reach it when the
// server trusts its proxy and runs chi's RealIP middleware first.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
