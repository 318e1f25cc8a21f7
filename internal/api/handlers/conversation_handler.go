package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/auxilium/internal/models"
	"github.com/yoockh/auxilium/internal/services"
	"github.com/yoockh/auxilium/internal/utils"
)

type ConversationHandler struct {
	svc     services.ConversationService
	journal services.JournalService
}

func NewConversationHandler(svc services.ConversationService, journal services.JournalService) *ConversationHandler {
	return &ConversationHandler{svc: svc, journal: journal}
}

type createConversationRequest struct {
	Title string `json:"title"`
}

type appendExchangeRequest struct {
	UserText      string `json:"user_text"`
	AssistantText string `json:"assistant_text"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
}

func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var body createConversationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ConversationHandler.Create", "invalid request body", err))
		return
	}

	conv, err := h.svc.Create(c.Request.Context(), userID, body.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.ConversationSummary{ID: conv.ID, Title: conv.Title})
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	list, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

func (h *ConversationHandler) AppendExchange(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var body appendExchangeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ConversationHandler.AppendExchange", "invalid request body", err))
		return
	}

	convID := c.Param("id")
	err := h.svc.AppendExchange(c.Request.Context(), convID, userID, body.UserText, body.AssistantText,
		models.MessageMeta{Provider: body.Provider, Model: body.Model})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation_id": convID})
}

func (h *ConversationHandler) ListMessages(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	convID := c.Param("id")
	msgs, err := h.svc.ListMessages(c.Request.Context(), convID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": convID,
		"messages":        msgs,
	})
}

// RelayEvents lists the caller's most recent relayed exchanges, newest first.
func (h *ConversationHandler) RelayEvents(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit := int64(50)
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events, err := h.journal.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
