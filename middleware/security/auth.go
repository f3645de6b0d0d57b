// Package security is the auth collaborator boundary: it verifies tokens
// issued elsewhere and hands the core a trusted user id. Token issuance is
// out of scope.
package security

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"connectify/tools/errs"
)

// CtxUserIDKey is where the middleware stores the verified user id.
const CtxUserIDKey = "authUserID"

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

type claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// VerifyToken validates an HS256 token and returns the user id it vouches
// for. Used directly by the websocket handshake.
func (v *Verifier) VerifyToken(token string) (string, error) {
	if token == "" {
		return "", errs.ErrTokenInvalid.Wrap()
	}
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.ErrTokenInvalid.WithDetail("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errs.ErrTokenExpired.Wrap()
		}
		return "", errs.ErrTokenInvalid.WrapMsg(err.Error())
	}
	if !parsed.Valid || c.UserID == "" {
		return "", errs.ErrTokenInvalid.Wrap()
	}
	return c.UserID, nil
}

// SignToken mints a token for tests and local tooling; production tokens come
// from the external auth service with the same shape.
func (v *Verifier) SignToken(userID string, ttl time.Duration) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	s, err := t.SignedString(v.secret)
	return s, errs.Wrap(err)
}

// Middleware guards REST routes: bearer token in, user id in context out.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[len("bearer "):])
		}
		userID, err := v.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"isSuccess": false, "error": "authentication required"})
			return
		}
		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

// UserID reads the verified user id set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
