package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// sessionCookieName is the cookie carrying the signed session ID.
const sessionCookieName = "forcerank_session"

// sessionClaims carries the session ID inside the signed cookie.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// signSessionID wraps the session ID in an HS256 JWT so a tampered cookie
// cannot address another session.
func (s *Server) signSessionID(sessionID string, ttl time.Duration) (string, error) {
	claims := sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.sessionSecret)
}

// sessionIDFromRequest extracts and verifies the session cookie. Absent,
// expired, or tampered cookies yield "".
func (s *Server) sessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.sessionSecret, nil
	})
	if err != nil || !token.Valid {
		return ""
	}
	return claims.SessionID
}

// ensureSession returns the request's session ID, minting a new one and
// setting the cookie when the request has none.
func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) string {
	if sessionID := s.sessionIDFromRequest(r); sessionID != "" {
		return sessionID
	}
	sessionID := uuid.New().String()
	s.setSessionCookie(w, r, sessionID, s.config.GetSessionTTL())
	return sessionID
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string, ttl time.Duration) {
	signed, err := s.signSessionID(sessionID, ttl)
	if err != nil {
		log.Err(err).Msg("failed to sign session cookie")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
