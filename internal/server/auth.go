package server

import (
	"crypto/subtle"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/worker"
	"golang.org/x/time/rate"
)

const clientKey = "claimlens_client"

// client is a configured API client with its resolved key
type client struct {
	name        string
	key         string
	permissions map[string]bool
}

func (c *client) can(perm string) bool {
	return c.permissions[perm] || c.permissions[model.PermAdmin]
}

// anonymous is used when no clients are configured
var anonymous = &client{name: "anonymous", permissions: map[string]bool{model.PermAdmin: true}}

type authenticator struct {
	clients    []*client
	configured bool
	limiter    *worker.Limiter
}

// newAuthenticator resolves client keys and their per-minute quotas. Clients
// whose key cannot be resolved are skipped.
func newAuthenticator(cfg model.AuthConfig) *authenticator {
	a := &authenticator{
		configured: len(cfg.Clients) > 0,
		limiter:    worker.NewLimiter(float64(rate.Inf), 1),
	}

	for _, cc := range cfg.Clients {
		key := cc.Key
		if cc.KeyEnv != "" {
			if v := os.Getenv(cc.KeyEnv); v != "" {
				key = v
			}
		}
		if key == "" {
			slog.Warn("API client has no key, skipping", "client", cc.Name, "key_env", cc.KeyEnv)
			continue
		}

		perms := make(map[string]bool, len(cc.Permissions))
		for _, p := range cc.Permissions {
			perms[p] = true
		}
		a.clients = append(a.clients, &client{name: cc.Name, key: key, permissions: perms})

		rps, burst := worker.PerMinute(cc.RequestsPerMinute)
		a.limiter.SetRate(cc.Name, rps, burst)
	}
	return a
}

func (a *authenticator) enabled() bool {
	return a.configured
}

func (a *authenticator) lookup(key string) *client {
	for _, c := range a.clients {
		if subtle.ConstantTimeCompare([]byte(c.key), []byte(key)) == 1 {
			return c
		}
	}
	return nil
}

// presentedKey reads "Authorization: Bearer <key>" or "X-API-Key: <key>"
func presentedKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// middleware authenticates the caller and enforces its rate limit
func (a *authenticator) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cl := anonymous
		if a.configured {
			key := presentedKey(c.Request)
			if key == "" {
				abortError(c, http.StatusUnauthorized, "missing API key")
				return
			}
			if cl = a.lookup(key); cl == nil {
				abortError(c, http.StatusUnauthorized, "invalid API key")
				return
			}
		}

		if !a.limiter.Allow(cl.name) {
			wait := a.limiter.RetryAfter(cl.name)
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			slog.Info("rate limited", "client", cl.name, "retry_after", wait)
			abortError(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		c.Set(clientKey, cl)
		c.Next()
	}
}

// require rejects callers without perm
func (a *authenticator) require(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !clientFrom(c).can(perm) {
			abortError(c, http.StatusForbidden, "missing permission: "+perm)
			return
		}
		c.Next()
	}
}

func clientFrom(c *gin.Context) *client {
	if v, ok := c.Get(clientKey); ok {
		if cl, ok := v.(*client); ok {
			return cl
		}
	}
	return anonymous
}
