package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/yoockh/auxilium/internal/services"
)

var testWebhookSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("identity-webhook-test-secret"))

type fakeUsers struct {
	got []services.Identity
	err error
}

func (f *fakeUsers) EnsureFromIdentity(_ context.Context, id services.Identity) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.got = append(f.got, id)
	return true, nil
}

func newWebhookEngine(t *testing.T, users services.UserService) *gin.Engine {
	t.Helper()
	l, _ := test.NewNullLogger()
	h, err := NewWebhookHandler(testWebhookSecret, users, l)
	require.NoError(t, err)
	r := gin.New()
	r.POST("/webhooks/identity", h.Identity)
	return r
}

func signedWebhook(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	wh, err := svix.NewWebhook(testWebhookSecret)
	require.NoError(t, err)

	msgID := "msg_2abcdef"
	now := time.Now()
	sig, err := wh.Sign(msgID, now, payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("svix-id", msgID)
	req.Header.Set("svix-timestamp", strconv.FormatInt(now.Unix(), 10))
	req.Header.Set("svix-signature", sig)
	return req
}

const userCreatedPayload = `{
  "type": "user.created",
  "data": {
    "id": "user_29w83sxmDNGwOuEthce5gg56FcC",
    "first_name": "Example",
    "last_name": "User",
    "primary_email_address_id": "idn_2",
    "email_addresses": [
      {"id": "idn_1", "email_address": "old@example.org"},
      {"id": "idn_2", "email_address": "example@example.org"}
    ]
  }
}`

func TestWebhook_UserCreated(t *testing.T) {
	users := &fakeUsers{}
	r := newWebhookEngine(t, users)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedWebhook(t, []byte(userCreatedPayload)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"user added successfully"}`, w.Body.String())
	require.Len(t, users.got, 1)
	assert.Equal(t, services.Identity{
		ExternalID: "user_29w83sxmDNGwOuEthce5gg56FcC",
		FirstName:  "Example",
		LastName:   "User",
		Email:      "example@example.org",
	}, users.got[0])
}

func TestWebhook_OtherEventsAreAcknowledged(t *testing.T) {
	users := &fakeUsers{}
	r := newWebhookEngine(t, users)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedWebhook(t, []byte(`{"type":"session.created","data":{"id":"sess_1"}}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"webhook received"}`, w.Body.String())
	assert.Empty(t, users.got)
}

func TestWebhook_MissingHeaders(t *testing.T) {
	users := &fakeUsers{}
	r := newWebhookEngine(t, users)

	for _, drop := range []string{"svix-id", "svix-timestamp", "svix-signature"} {
		req := signedWebhook(t, []byte(userCreatedPayload))
		req.Header.Del(drop)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, drop)
	}
	assert.Empty(t, users.got)
}

func TestWebhook_TamperedPayload(t *testing.T) {
	users := &fakeUsers{}
	r := newWebhookEngine(t, users)

	req := signedWebhook(t, []byte(userCreatedPayload))
	tampered := bytes.Replace([]byte(userCreatedPayload), []byte("Example"), []byte("Mallory"), 1)
	req.Body = httpBody(tampered)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, users.got)
}

func httpBody(b []byte) io.ReadCloser { return io.NopCloser(bytes.NewReader(b)) }

func TestWebhook_StoreFailure(t *testing.T) {
	r := newWebhookEngine(t, &fakeUsers{err: errors.New("unique violation")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedWebhook(t, []byte(userCreatedPayload)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestNewWebhookHandler_BadSecret(t *testing.T) {
	l, _ := test.NewNullLogger()
	_, err := NewWebhookHandler("whsec_%%%not-base64", &fakeUsers{}, l)
	assert.Error(t, err)
}
