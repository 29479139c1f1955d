package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/er587/wedding-gallery-application/internal/tagging"
)

const (
	sessionCookieName = "gallery_session"

	// DefaultTokenDuration is the lifetime of tokens minted without an explicit TTL
	DefaultTokenDuration = 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrTokenExpired = errors.New("session token expired")
	ErrNoToken      = errors.New("no session token")
	ErrNoSecret     = errors.New("session secret is not configured")
)

// Session is the identity carried by a signed token. The gallery's login
// flow issues tokens; this service only verifies them.
type Session struct {
	UserID      string `json:"user_id"`
	IsModerator bool   `json:"is_moderator"`
	ExpiresAt   int64  `json:"exp"` // unix seconds
}

// Actor returns the session identity as seen by the tagging layer.
func (s *Session) Actor() tagging.Actor {
	return tagging.Actor{UserID: s.UserID, IsModerator: s.IsModerator}
}

// SessionManager signs and verifies session tokens with a shared secret.
// Tokens have the form base64url(payload) "." base64url(hmac-sha256(payload)).
type SessionManager struct {
	secret []byte
	now    func() time.Time
}

// NewSessionManager creates a new session manager. With an empty secret
// the manager issues no tokens and rejects every token it is shown.
func NewSessionManager(secret string) *SessionManager {
	return &SessionManager{secret: []byte(secret), now: time.Now}
}

// IssueToken mints a token for userID that expires after ttl.
func (sm *SessionManager) IssueToken(userID string, isModerator bool, ttl time.Duration) (string, error) {
	if len(sm.secret) == 0 {
		return "", ErrNoSecret
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenDuration
	}
	payload, err := json.Marshal(Session{
		UserID:      userID,
		IsModerator: isModerator,
		ExpiresAt:   sm.now().Add(ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + sm.signData(encoded), nil
}

// ParseToken verifies a token and returns its session.
func (sm *SessionManager) ParseToken(token string) (*Session, error) {
	if len(sm.secret) == 0 {
		return nil, ErrInvalidToken
	}
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || !sm.verifySignature(encoded, signature) {
		return nil, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil || session.UserID == "" {
		return nil, ErrInvalidToken
	}
	if sm.now().Unix() >= session.ExpiresAt {
		return nil, ErrTokenExpired
	}
	return &session, nil
}

// SetSessionCookie sets the session cookie on the response
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}

// Authenticate extracts and verifies the identity token of a request. A
// Bearer token takes precedence over the session cookie.
func (sm *SessionManager) Authenticate(r *http.Request) (*Session, error) {
	token := ""
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		token = strings.TrimSpace(bearer)
	} else if cookie, err := r.Cookie(sessionCookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		return nil, ErrNoToken
	}
	return sm.ParseToken(token)
}

// GetSessionFromRequest extracts the session from a request, or nil.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) *Session {
	session, err := sm.Authenticate(r)
	if err != nil {
		return nil
	}
	return session
}

// signData creates an HMAC signature for data
func (sm *SessionManager) signData(data string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature verifies an HMAC signature
func (sm *SessionManager) verifySignature(data, signature string) bool {
	expected := sm.signData(data)
	return hmac.Equal([]byte(signature), []byte(expected))
}
