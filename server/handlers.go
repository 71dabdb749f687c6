package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/forcerank/forcerank/auth"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// LoginHandler redirects to the provider authorization URL. The optional
// state query parameter is the (percent-encoded) path to resume after login.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		http.Redirect(w, r, s.auth.LoginURL(state), http.StatusFound)
	}
}

// CallbackHandler completes the login. Parameters arrive as query params on
// GET or form fields on POST (form_post response mode); query values win when
// both are present.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed callback parameters", http.StatusBadRequest)
			return
		}

		sessionID := s.ensureSession(w, r)
		redirectPath, err := s.auth.HandleCallback(r.Context(), sessionID, r.URL.Query(), r.PostForm)
		if err != nil {
			log.Err(err).Msg("login callback failed")
			http.Error(w, loginErrorMessage(err), callbackStatus(err))
			return
		}

		// State is a resume path, not a trusted value: never leave the site.
		if redirectPath == "" || !strings.HasPrefix(redirectPath, "/") || strings.HasPrefix(redirectPath, "//") {
			redirectPath = "/"
		}
		http.Redirect(w, r, redirectPath, http.StatusFound)
	}
}

// UserInfoHandler serves the cached user projection. Anonymous requests get
// {"loggedIn":false}, never an error.
func (s *Server) UserInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := s.auth.GetUserInfo(r.Context(), s.sessionIDFromRequest(r))
		if err != nil {
			log.Err(err).Msg("failed to load user info")
			http.Error(w, "failed to load user info", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// LogoutHandler destroys the session and expires the cookie. Logging out an
// already-anonymous client succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Logout(r.Context(), s.sessionIDFromRequest(r)); err != nil {
			log.Err(err).Msg("failed to destroy session")
		}
		s.clearSessionCookie(w, r)
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func callbackStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrAuthorizationDenied), errors.Is(err, auth.ErrMissingCode):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrIdentityFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func loginErrorMessage(err error) string {
	var authErr *auth.AuthError
	if errors.As(err, &authErr) && authErr.Description != "" {
		return fmt.Sprintf("Login failed: %s", authErr.Description)
	}
	return "Login failed"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}
