// Package server implements the mintdeck HTTP surface: the JWT-guarded
// admin API, the unauthenticated metrics scrape, and the WebSocket push
// channel.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Authenticator verifies the admin credential and issues session tokens.
// The admin password is held only as a bcrypt hash.
type Authenticator struct {
	secret   []byte
	user     string
	passHash []byte
}

// NewAuthenticator hashes pass unless it already looks like a bcrypt
// hash ("$2..." prefix), so operators can put a pre-hashed value in the
// config file.
func NewAuthenticator(secret, user, pass string) (*Authenticator, error) {
	a := &Authenticator{secret: []byte(secret), user: user}
	if strings.HasPrefix(pass, "$2") {
		a.passHash = []byte(pass)
		return a, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	a.passHash = hash
	return a, nil
}

// Verify checks a login attempt.
func (a *Authenticator) Verify(user, pass string) bool {
	if user != a.user {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.passHash, []byte(pass)) == nil
}

// Claims is the payload embedded in every JWT issued by /api/login.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed HS256 JWT valid for 24 hours.
func (a *Authenticator) GenerateToken(username string) (string, error) {
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "mintdeck",
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// parseToken validates a token string and returns the claims.
func (a *Authenticator) parseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, err
	}
	return claims, nil
}

// Middleware validates session tokens. It expects the header
// "Authorization: Bearer <jwt>"; browser WebSocket clients cannot set
// headers on the upgrade request, so a "token" query parameter is
// accepted as a fallback. On success the username is stored in the Gin
// context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		if raw := c.GetHeader("Authorization"); raw != "" {
			parts := strings.SplitN(raw, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "invalid Authorization format, expected: Bearer <token>",
				})
				return
			}
			tokenStr = parts[1]
		} else {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing credentials",
			})
			return
		}

		claims, err := a.parseToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}
