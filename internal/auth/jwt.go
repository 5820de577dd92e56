package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lalith-99/hostchat/internal/models"
)

const issuer = "hostchat"

// Claims is the payload inside every JWT token.
//
// Login and register put these fields in the token. On every later request
// the middleware reads them back, so handlers know who is calling and with
// which role without a database round-trip.
//
// Why carry the role in the token?
//   - RequireRole guards the admin routes (broadcast, financial notices,
//     user management) on every request; a lookup per request would add a
//     query to each contact poll tick.
//   - The role is a snapshot taken at login. A demoted user keeps the old
//     role until the token expires, which TOKEN_TTL bounds.
//
// Username rides along only for request logs.
type Claims struct {
	UserID   int64       `json:"user_id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a user.
//
// Parameters:
//   - user: the account the token represents. Only ID, Username and Role
//     are read.
//   - secret: the HMAC key (config.JWTSecret).
//   - ttl: lifetime of the token (config.TokenTTL, 24h by default).
//
// The subject is the decimal user id, so generic JWT tooling shows who the
// token belongs to.
func GenerateToken(user *models.User, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	// HS256: one shared secret between the issuer and the verifier, which
	// are the same process here.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates a JWT string and extracts the claims.
//
// It verifies:
//  1. The signature matches secret.
//  2. The token has not expired.
//  3. The issuer is "hostchat", so a token minted by another service that
//     happens to share the secret is refused.
//  4. The signing method is HMAC. Accepting "none" or RSA here would allow
//     the algorithm confusion attack.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			// Runs before the signature check.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
