package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fwilhelm/connectk/internal/auth"
)

// EnsureGuest returns the caller's uid from the auth_token cookie, minting a
// fresh guest identity (and setting the cookie) when the token is missing or
// invalid. Must run before any response body or websocket upgrade so the
// Set-Cookie header still makes it out.
func EnsureGuest(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	cookieHeader := r.Header.Get("Cookie")
	if strings.Contains(cookieHeader, "auth_token=") {
		token := extractCookieToken(cookieHeader, "auth_token")
		if uid, err := auth.AuthenticateJWT(token); err == nil {
			return uid, nil
		}
	}

	uid := uuid.New()
	token, err := auth.CreateJWT(uid)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create guest token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return uid, nil
}

// extractCookieToken extracts a named cookie value from a "Cookie" header, or
// returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}
