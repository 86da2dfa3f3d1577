package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"lifegen.ai/internal/protocol"
)

// idleTTL is how long a client's bucket survives without requests.
const idleTTL = 10 * time.Minute

// RateLimiter tracks one token bucket per client IP. It guards genome
// creation on both the HTTP routes and the websocket.
type RateLimiter struct {
	limit rate.Limit
	burst int

	// TrustProxy takes the client IP from X-Forwarded-For. Only set it
	// behind a proxy that overwrites the header.
	TrustProxy bool

	now func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSec requests per second per IP with the given
// burst. perSec <= 0 disables limiting.
func NewRateLimiter(perSec float64, burst int) *RateLimiter {
	lim := rate.Limit(perSec)
	if perSec <= 0 {
		lim = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limit: lim, burst: burst, now: time.Now, clients: map[string]*client{}}
}

// ClientIP is the remote host of r, or the first X-Forwarded-For hop when
// TrustProxy is set.
func (rl *RateLimiter) ClientIP(r *http.Request) string {
	if rl.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (rl *RateLimiter) Allow(ip string) bool {
	now := rl.now()
	rl.mu.Lock()
	if now.Sub(rl.lastSweep) >= idleTTL {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) >= idleTTL {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}
	c, ok := rl.clients[ip]
	if !ok {
		c = &client{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()
	return c.lim.AllowN(now, 1)
}

// AllowRequest charges one token to the client behind r.
func (rl *RateLimiter) AllowRequest(r *http.Request) bool {
	return rl.Allow(rl.ClientIP(r))
}

func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.AllowRequest(r) {
			writeError(w, http.StatusTooManyRequests, protocol.ErrRateLimit, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
