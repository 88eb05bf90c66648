package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/tastier/internal/favsync"
)

type SessionService interface {
	UserID() string
	SetUser(ctx context.Context, userID string) error
}

// SessionRequest sets the active user. A null or absent userId signs out.
type SessionRequest struct {
	UserID *string `json:"userId" binding:"omitempty,max=128"`
}

type SessionResponse struct {
	UserID   string `json:"userId"`
	SignedIn bool   `json:"signedIn"`
}

type SessionController struct {
	service SessionService
}

func NewSessionController(service SessionService) *SessionController {
	return &SessionController{service: service}
}

func (sc *SessionController) Get(c *gin.Context) {
	userID := sc.service.UserID()
	c.JSON(http.StatusOK, SessionResponse{UserID: userID, SignedIn: userID != ""})
}

func (sc *SessionController) Set(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	var userID string
	if req.UserID != nil {
		userID = strings.TrimSpace(*req.UserID)
	}

	if err := sc.service.SetUser(c.Request.Context(), userID); err != nil {
		if errors.Is(err, favsync.ErrStopped) {
			respondError(c, http.StatusServiceUnavailable, "service stopping", "")
			return
		}
		respondInternalError(c, err, "set user")
		return
	}

	c.JSON(http.StatusOK, SessionResponse{UserID: userID, SignedIn: userID != ""})
}
