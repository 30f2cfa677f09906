package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/shortlink/internal/captcha"
	"github.com/user/shortlink/internal/models"
	"go.uber.org/zap"
)

// Registrar is the account-creation side of the external auth
// provider. Credentials and sessions live with the provider; this
// service only forwards captcha-verified registrations.
type Registrar interface {
	Register(ctx context.Context, email, password string) error
}

// AuthHandler gates registration behind captcha verification.
type AuthHandler struct {
	registrar Registrar
	captcha   *captcha.Verifier
	log       *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(registrar Registrar, verifier *captcha.Verifier, log *zap.Logger) *AuthHandler {
	return &AuthHandler{registrar: registrar, captcha: verifier, log: log}
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid request body",
			Code:    models.ErrCodeInvalidInput,
			Details: err.Error(),
		})
		return
	}

	ok, err := h.captcha.Verify(c.Request.Context(), req.CaptchaToken)
	if err != nil {
		h.log.Warn("captcha verification error", zap.Error(err))
	}
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Captcha verification failed",
			Code:  models.ErrCodeInvalidInput,
		})
		return
	}

	if err := h.registrar.Register(c.Request.Context(), req.Email, req.Password); err != nil {
		h.log.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "The operation was unsuccessful, please try again later",
			Code:  models.ErrCodeInternalError,
		})
		return
	}

	c.Status(http.StatusCreated)
}
