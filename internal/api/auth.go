package api

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// AdminCookieName is the cookie carrying a signed operator session
	AdminCookieName = "marble_royale_admin"

	// AdminSessionDuration bounds how long a login stays valid
	AdminSessionDuration = 12 * time.Hour
)

var errBadCookie = errors.New("invalid admin cookie")

// AdminGuard protects the battle controls with a shared operator token.
// Clients either send "Authorization: Bearer <token>" or log in once and
// carry a signed session cookie. A guard with an empty token lets every
// request through.
type AdminGuard struct {
	token     string
	secretKey []byte

	mu       sync.Mutex
	sessions map[string]time.Time // session id -> expiry
}

// NewAdminGuard creates a guard for token.
func NewAdminGuard(token string) *AdminGuard {
	secretKey := make([]byte, 32)
	if _, err := rand.Read(secretKey); err != nil {
		// Cookies can't be trusted without a key; fall back to bearer only
		log.Printf("⚠️ Failed to generate cookie key: %v", err)
		secretKey = nil
	}
	if token != "" {
		log.Println("🔐 Battle controls require the admin token")
	}
	return &AdminGuard{
		token:     token,
		secretKey: secretKey,
		sessions:  make(map[string]time.Time),
	}
}

// Enabled reports whether a token is configured.
func (g *AdminGuard) Enabled() bool {
	return g != nil && g.token != ""
}

// tokenMatches compares in constant time.
func (g *AdminGuard) tokenMatches(candidate string) bool {
	return hmac.Equal([]byte(candidate), []byte(g.token))
}

// Authorized reports whether r may use the battle controls.
func (g *AdminGuard) Authorized(r *http.Request) bool {
	if !g.Enabled() {
		return true
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return g.tokenMatches(strings.TrimPrefix(auth, "Bearer "))
	}
	cookie, err := r.Cookie(AdminCookieName)
	if err != nil {
		return false
	}
	id, err := g.decodeCookie(cookie.Value)
	if err != nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	expiry, ok := g.sessions[id]
	return ok && time.Now().Before(expiry)
}

// Middleware rejects unauthorized requests with 401.
func (g *AdminGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Authorized(r) {
			writeError(w, "Admin token required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleLogin exchanges the token for a session cookie.
func (g *AdminGuard) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !g.Enabled() {
		writeJSON(w, map[string]bool{"enabled": false, "authenticated": true})
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if !g.tokenMatches(req.Token) || g.secretKey == nil {
		log.Printf("⚠️ Admin login rejected from %s", GetClientIP(r))
		RecordConnectionRejected("auth")
		writeError(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	id := newSessionID()
	now := time.Now()
	g.mu.Lock()
	for sid, expiry := range g.sessions {
		if now.After(expiry) {
			delete(g.sessions, sid)
		}
	}
	g.sessions[id] = now.Add(AdminSessionDuration)
	g.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     AdminCookieName,
		Value:    g.encodeCookie(id),
		Path:     "/",
		MaxAge:   int(AdminSessionDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	log.Printf("🔐 Admin session created for %s", GetClientIP(r))
	writeJSON(w, map[string]bool{"enabled": true, "authenticated": true})
}

// HandleLogout drops the session and clears the cookie.
func (g *AdminGuard) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(AdminCookieName); err == nil {
		if id, err := g.decodeCookie(cookie.Value); err == nil {
			g.mu.Lock()
			delete(g.sessions, id)
			g.mu.Unlock()
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:   AdminCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	writeJSON(w, map[string]bool{"success": true})
}

// HandleStatus reports whether the guard is on and the caller passes it.
func (g *AdminGuard) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{
		"enabled":       g.Enabled(),
		"authenticated": g.Authorized(r),
	})
}

// encodeCookie signs a session id as base64("id.hexmac").
func (g *AdminGuard) encodeCookie(id string) string {
	mac := hmac.New(sha256.New, g.secretKey)
	mac.Write([]byte(id))
	signature := hex.EncodeToString(mac.Sum(nil))
	return base64.URLEncoding.EncodeToString([]byte(id + "." + signature))
}

func (g *AdminGuard) decodeCookie(value string) (string, error) {
	if g.secretKey == nil {
		return "", errBadCookie
	}
	decoded, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return "", errBadCookie
	}
	id, sig, ok := strings.Cut(string(decoded), ".")
	if !ok {
		return "", errBadCookie
	}

	mac := hmac.New(sha256.New, g.secretKey)
	mac.Write([]byte(id))
	if !hmac.Equal([]byte(sig), []byte(hex.EncodeToString(mac.Sum(nil)))) {
		return "", errBadCookie
	}
	return id, nil
}

func newSessionID() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
