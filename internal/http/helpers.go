package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/logger"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error    string `json:"error"`
	Advisory string `json:"advisory,omitempty"`
}

// SuccessResponse is the body of replies that only carry a message.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// respondInternalError logs err and sends a 500 without exposing the cause.
func respondInternalError(c *gin.Context, err error, context string) {
	logger.L().Error("internal error", zap.String("context", context), zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func respondError(c *gin.Context, status int, message, advisory string) {
	c.JSON(status, ErrorResponse{Error: message, Advisory: advisory})
}

func respondSuccess(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message, Data: data})
}
