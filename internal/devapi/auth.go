package devapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims carries the user id inside an access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

var ErrInvalidToken = errors.New("devapi: invalid token")

// GenerateToken issues an HS256 access token for userID.
func GenerateToken(userID string, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		UserID: userID,
	})
	return token.SignedString(secretKey)
}

// UserIDFromToken validates tokenString and returns the user id it carries.
func UserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

func hashPassword(password string, cost int) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}

func checkPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext returns the authenticated user id set by the auth middleware.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// authError writes a token failure in the {"msg": ...} shape clients expect
// from the production API.
func authError(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"msg": msg})
}

// requireAuth rejects requests without a valid bearer token. Missing and
// expired tokens get 401; malformed or forged ones get 422.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			authError(w, http.StatusUnauthorized, "Missing Authorization Header")
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			authError(w, http.StatusUnprocessableEntity, "Bad Authorization header. Expected 'Authorization: Bearer <JWT>'")
			return
		}

		userID, err := UserIDFromToken(raw, s.opts.Secret)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			authError(w, http.StatusUnauthorized, "Token has expired")
			return
		case errors.Is(err, jwt.ErrTokenMalformed):
			authError(w, http.StatusUnprocessableEntity, "Not enough segments")
			return
		case err != nil:
			authError(w, http.StatusUnprocessableEntity, "Signature verification failed")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
