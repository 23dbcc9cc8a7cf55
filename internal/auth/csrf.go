package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/Lakunake/Sync-Player/internal/clock"
)

const (
	// SessionCookie is the httpOnly, SameSite=Strict cookie carrying the
	// CSRF session id.
	SessionCookie = "sync_session"
	// TokenHeader must echo the session's token on every mutating request.
	TokenHeader = "X-CSRF-Token"

	tokenTTL    = 24 * time.Hour
	gcThreshold = 1000
)

type csrfSession struct {
	token  string
	issued time.Time
}

// CSRF issues and validates per-session tokens for mutating HTTP
// endpoints. Safe methods (GET, HEAD, OPTIONS) never consult it.
type CSRF struct {
	mu       sync.Mutex
	sessions map[string]csrfSession
	clk      clock.Clock
}

func NewCSRF(clk clock.Clock) *CSRF {
	return &CSRF{
		sessions: make(map[string]csrfSession),
		clk:      clk,
	}
}

// Ensure returns the session's current token, minting a session and token
// as needed; an expired token is rotated in place. Pass "" to create a
// fresh session.
func (c *CSRF) Ensure(sessionID string) (id, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clk.Now()

	if sessionID != "" {
		if s, ok := c.sessions[sessionID]; ok && now.Sub(s.issued) < tokenTTL {
			return sessionID, s.token
		}
	}
	if sessionID == "" {
		sessionID = randomHex(16)
	}
	token = randomHex(32)
	c.sessions[sessionID] = csrfSession{token: token, issued: now}
	c.gcLocked(now)
	return sessionID, token
}

// Validate checks the (session, token) pair and its age.
func (c *CSRF) Validate(sessionID, token string) bool {
	if sessionID == "" || token == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok || s.token != token {
		return false
	}
	return c.clk.Now().Sub(s.issued) < tokenTTL
}

// gcLocked sweeps expired sessions once the table grows past the
// threshold. Caller holds c.mu.
func (c *CSRF) gcLocked(now time.Time) {
	if len(c.sessions) <= gcThreshold {
		return
	}
	for id, s := range c.sessions {
		if now.Sub(s.issued) >= tokenTTL {
			delete(c.sessions, id)
		}
	}
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
