package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/auxilium/config"
)

func init() { gin.SetMode(gin.TestMode) }

func protectedEngine(t *testing.T, cfg config.Auth) *gin.Engine {
	t.Helper()
	auth, err := JWTAuth(cfg)
	require.NoError(t, err)
	r := gin.New()
	r.GET("/me", auth, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	return r
}

func call(r *gin.Engine, authz string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	r.ServeHTTP(w, req)
	return w
}

func hsToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTAuth_HS256(t *testing.T) {
	r := protectedEngine(t, config.Auth{JWTSecret: "s3cret"})

	tok := hsToken(t, "s3cret", jwt.RegisteredClaims{
		Subject:   "user_1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	w := call(r, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user_1", w.Body.String())
}

func TestJWTAuth_Rejects(t *testing.T) {
	r := protectedEngine(t, config.Auth{JWTSecret: "s3cret", Issuer: "https://issuer.example"})

	good := jwt.RegisteredClaims{Subject: "user_1", Issuer: "https://issuer.example"}
	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"empty bearer":   "Bearer ",
		"wrong secret":   "Bearer " + hsToken(t, "other", good),
		"wrong issuer":   "Bearer " + hsToken(t, "s3cret", jwt.RegisteredClaims{Subject: "user_1", Issuer: "evil"}),
		"no subject":     "Bearer " + hsToken(t, "s3cret", jwt.RegisteredClaims{Issuer: "https://issuer.example"}),
		"expired": "Bearer " + hsToken(t, "s3cret", jwt.RegisteredClaims{
			Subject: "user_1", Issuer: "https://issuer.example",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}),
	}
	for name, authz := range cases {
		w := call(r, authz)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}

	w := call(r, "Bearer "+hsToken(t, "s3cret", good))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuth_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	// escaped newlines, as found in .env files
	r := protectedEngine(t, config.Auth{JWTPublicKey: strings.ReplaceAll(pemKey, "\n", `\n`), JWTSecret: "ignored"})

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{Subject: "user_rs"}).SignedString(key)
	require.NoError(t, err)
	w := call(r, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user_rs", w.Body.String())

	// an HS256 token signed with the public key bytes must not pass
	w = call(r, "Bearer "+hsToken(t, pemKey, jwt.RegisteredClaims{Subject: "user_rs"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_BadPublicKey(t *testing.T) {
	_, err := JWTAuth(config.Auth{JWTPublicKey: "not a pem"})
	assert.Error(t, err)
}

func TestRequestLogger(t *testing.T) {
	l, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(RequestLogger(l))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-Id", "req-42")
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-Id"))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "req-42", entry.Data["request_id"])
	assert.Equal(t, 200, entry.Data["status"])
	assert.Equal(t, 4, entry.Data["bytes"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}
