/*
auth.go - JWT authentication for mutating endpoints

PURPOSE:
  Token issuance and verification. A single admin credential pair is
  configured at startup; a successful login returns a short-lived HS256
  token, and RequireAdmin gates every route that writes.

TOKEN SHAPE:
  Standard registered claims only (subject, issued-at, expiry). No
  custom claims: holding a valid token IS the authorization.

SEE ALSO:
  - server.go: which route groups sit behind RequireAdmin
  - cmd/server/main.go: where the secret and credentials come from
*/
package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 12 * time.Hour

// Auth issues and verifies admin tokens.
type Auth struct {
	Secret        []byte
	AdminUser     string
	AdminPassword string
}

// Login exchanges admin credentials for a signed token.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(a.AdminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.AdminPassword)) == 1
	if !userOK || !passOK {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   req.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	})

	signed, err := token.SignedString(a.Secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sign token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: signed})
}

// RequireAdmin rejects requests without a valid bearer token.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
			return a.Secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", err)
			return
		}

		next.ServeHTTP(w, r)
	})
}
