package middleware

import (
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/yoockh/auxilium/config"
	"github.com/yoockh/auxilium/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// JWTAuth verifies bearer tokens issued by the identity provider and stores the
// subject as "user_id". A configured RS256 public key takes precedence over the
// HS256 secret.
func JWTAuth(cfg config.Auth) (gin.HandlerFunc, error) {
	var (
		key    any
		method jwt.SigningMethod
	)
	if cfg.JWTPublicKey != "" {
		pub, err := parseRSAPublicKey(cfg.JWTPublicKey)
		if err != nil {
			return nil, err
		}
		key, method = pub, jwt.SigningMethodRS256
	} else {
		key, method = []byte(cfg.JWTSecret), jwt.SigningMethodHS256
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{method.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if !strings.HasPrefix(auth, "Bearer ") || raw == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		claims := &jwt.RegisteredClaims{}
		tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil })
		if err != nil || tok == nil || !tok.Valid {
			unauthorized(c, "invalid token")
			return
		}

		if claims.Subject == "" {
			unauthorized(c, "missing subject")
			return
		}

		c.Set("user_id", claims.Subject)
		c.Next()
	}, nil
}

func parseRSAPublicKey(s string) (*rsa.PublicKey, error) {
	// env files often carry the PEM with escaped newlines
	return jwt.ParseRSAPublicKeyFromPEM([]byte(strings.ReplaceAll(s, `\n`, "\n")))
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
		Code:    utils.CodeUnauthorized,
		Message: msg,
	})
}
