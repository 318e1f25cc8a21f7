package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/auxilium/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	if status >= 500 {
		_ = c.Error(err)
	}
	c.JSON(status, APIError{
		Code:    utils.CodeOf(err),
		Message: utils.SafeMessage(err),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if s := c.GetString("user_id"); s != "" {
		return s, true
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}
