package api

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Lakunake/Sync-Player/internal/auth"
	"github.com/Lakunake/Sync-Player/internal/clock"
)

// csrfMiddleware rejects mutating requests whose token header does not
// match the session cookie. Safe methods pass untouched.
func (s *Server) csrfMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		sessionID, err := c.Cookie(auth.SessionCookie)
		if err != nil || !s.csrf.Validate(sessionID, c.GetHeader(auth.TokenHeader)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid or missing CSRF token"})
			return
		}
		c.Next()
	}
}

// rateLimit is a fixed-window per-IP limiter for expensive GET endpoints
// (directory scans, thumbnail renders).
func (s *Server) rateLimit(perMinute int) gin.HandlerFunc {
	var mu sync.Mutex
	type window struct {
		start time.Time
		count int
	}
	seen := make(map[string]*window)

	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.Request.RemoteAddr
		}
		if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
			c.Next()
			return
		}

		now := s.clk.Now()
		mu.Lock()
		w, ok := seen[host]
		if !ok || now.Sub(w.start) >= time.Minute {
			w = &window{start: now}
			seen[host] = w
		}
		w.count++
		over := w.count > perMinute
		mu.Unlock()

		if over {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// toolsGate guards the ffmpeg endpoints: a SHA-256 password check buys a
// short-lived JWT, which later calls present as a bearer token.
type toolsGate struct {
	passwordHash [32]byte
	enabled      bool
	secret       []byte
	clk          clock.Clock
}

const toolsSessionTTL = time.Hour

func newToolsGate(password string, clk clock.Clock) *toolsGate {
	g := &toolsGate{clk: clk, enabled: password != ""}
	if g.enabled {
		g.passwordHash = sha256.Sum256([]byte(password))
		g.secret = make([]byte, 32)
		if _, err := rand.Read(g.secret); err != nil {
			panic(err)
		}
	}
	return g
}

// authenticate checks the password and mints a session token.
func (g *toolsGate) authenticate(password string) (string, bool) {
	if !g.enabled {
		return "", false
	}
	sum := sha256.Sum256([]byte(password))
	if subtle.ConstantTimeCompare(sum[:], g.passwordHash[:]) != 1 {
		return "", false
	}
	now := g.clk.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ffmpeg-tools",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(toolsSessionTTL)),
	})
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", false
	}
	return signed, true
}

// require is the gin middleware form of the bearer check.
func (g *toolsGate) require(c *gin.Context) {
	if !g.enabled {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "media tools are disabled"})
		return
	}
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return g.secret, nil
	}, jwt.WithTimeFunc(g.clk.Now))
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
		return
	}
	c.Next()
}
