package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/agenda-assistant/internal/tenancy"
)

type contextKey string

const claimsKey contextKey = "bearerClaims"

// BearerAuth moves the caller's bearer token into the request context so the
// backend clients can forward it. With an empty secret the token is passed
// through as is and the panel backend decides whether it is valid. With a
// secret the token must be an HS256 JWT signed with it.
func BearerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r.Header.Get("Authorization"))
			if secret == "" {
				if token != "" {
					r = r.WithContext(tenancy.WithToken(r.Context(), token))
				}
				next.ServeHTTP(w, r)
				return
			}
			if token == "" {
				unauthorized(w, "missing authorization header")
				return
			}
			claims := jwt.RegisteredClaims{}
			parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !parsed.Valid {
				unauthorized(w, "Invalid or expired token")
				return
			}
			ctx := tenancy.WithToken(r.Context(), token)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the validated JWT claims, if BearerAuth checked a signature.
func ClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(jwt.RegisteredClaims)
	return claims, ok
}

func bearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
