package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/yoockh/auxilium/internal/services"
)

const maxWebhookBody = 1 << 20

// WebhookHandler receives signed account events from the identity provider.
type WebhookHandler struct {
	wh    *svix.Webhook
	users services.UserService
	log   *logrus.Logger
}

func NewWebhookHandler(secret string, users services.UserService, l *logrus.Logger) (*WebhookHandler, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, err
	}
	return &WebhookHandler{wh: wh, users: users, log: l}, nil
}

type identityEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type identityUser struct {
	ID                    string `json:"id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (u identityUser) primaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	return ""
}

func (h *WebhookHandler) Identity(c *gin.Context) {
	hdr := c.Request.Header
	if hdr.Get("svix-id") == "" || hdr.Get("svix-timestamp") == "" || hdr.Get("svix-signature") == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing svix headers"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}

	log := h.log.WithField("svix_id", hdr.Get("svix-id"))
	if err := h.wh.Verify(payload, hdr); err != nil {
		log.WithError(err).Warn("webhook verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	var evt identityEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if evt.Type != "user.created" {
		c.JSON(http.StatusOK, gin.H{"message": "webhook received"})
		return
	}

	var u identityUser
	if err := json.Unmarshal(evt.Data, &u); err != nil || u.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user payload"})
		return
	}

	created, err := h.users.EnsureFromIdentity(c.Request.Context(), services.Identity{
		ExternalID: u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.primaryEmail(),
	})
	if err != nil {
		log.WithError(err).WithField("external_id", u.ID).Error("failed to store user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error inserting user into database"})
		return
	}

	log.WithFields(logrus.Fields{"external_id": u.ID, "created": created}).Info("identity user synced")
	c.JSON(http.StatusOK, gin.H{"message": "user added successfully"})
}
