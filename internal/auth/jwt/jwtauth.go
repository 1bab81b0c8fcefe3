// Package jwt issues and checks the admin tokens of the reporting API.
// Every token carries the reports scope; tokens without it are rejected.
package jwt

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

const (
	scopeClaim = "scope"
	// ReportsScope grants read and export access to reports.
	ReportsScope = "reports"
)

// VerifyToken checks signature, expiry and scope and returns the subject.
func VerifyToken(jwtAuth *jwtauth.JWTAuth, token string) (string, error) {
	t, err := jwtauth.VerifyToken(jwtAuth, token)
	if err != nil {
		return "", err
	}
	if err := checkScope(t.PrivateClaims()); err != nil {
		return "", err
	}
	return t.Subject(), nil
}

// NewTokenWithSubject creates a reports token for subject (operator name), which may be empty.
func NewTokenWithSubject(jwtAuth *jwtauth.JWTAuth, ttl time.Duration, subject string) (string, error) {
	now := time.Now()
	claims := map[string]interface{}{
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
		scopeClaim: ReportsScope,
	}
	if subject != "" {
		claims["sub"] = subject
	}
	_, ts, err := jwtAuth.Encode(claims)
	if err != nil {
		return ts, err
	}
	return ts, nil
}

// Authenticator rejects requests whose verified token is missing, invalid or
// lacks the reports scope. It must run after jwtauth.Verify.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if err := checkScope(claims); err != nil {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Subject returns the operator name of the verified token in ctx, if any.
func Subject(ctx context.Context) string {
	token, _, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return ""
	}
	return token.Subject()
}

func checkScope(claims map[string]interface{}) error {
	if s, _ := claims[scopeClaim].(string); s != ReportsScope {
		return fmt.Errorf("token lacks %q scope", ReportsScope)
	}
	return nil
}
