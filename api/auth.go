package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xraph/tally"
	"github.com/xraph/tally/types"
)

// Claims are the JWT claims the API issues and accepts.
type Claims struct {
	Participant types.Participant `json:"participant"`
	jwt.RegisteredClaims
}

type contextKey struct{}

// IssueToken signs an HS256 token identifying p for ttl.
func IssueToken(secret []byte, p types.Participant, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Participant: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(p),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, fmt.Errorf("%w: missing authorization header", tally.ErrUnauthorized))
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			writeError(w, fmt.Errorf("%w: invalid authorization header", tally.ErrUnauthorized))
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return a.jwtSecret, nil
		})
		if err != nil || !token.Valid || claims.Participant == "" {
			writeError(w, fmt.Errorf("%w: invalid token", tally.ErrUnauthorized))
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// caller returns the participant the request was authenticated as.
func caller(r *http.Request) types.Participant {
	claims, _ := r.Context().Value(contextKey{}).(*Claims)
	if claims == nil {
		return ""
	}
	return claims.Participant
}
