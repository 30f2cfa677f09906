// ===========================================
// Package handler - HTTP Request Handlers
// ===========================================
// Handlers are thin: parse the request, call a service, format the
// response. Error mapping is centralized here so every endpoint
// speaks the same {error, code, details} dialect and internal
// failure detail never leaks to clients.
// ===========================================

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/shortlink/internal/models"
	"github.com/user/shortlink/internal/repository"
	"github.com/user/shortlink/internal/service"
)

// handleError converts service errors to HTTP responses.
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "Link not found",
			Code:  models.ErrCodeNotFound,
		})

	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid URL format",
			Code:    models.ErrCodeInvalidInput,
			Details: "URL must contain a dotted hostname with an optional http(s) scheme",
		})

	case errors.Is(err, service.ErrURLDead):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Destination URL did not respond",
			Code:  models.ErrCodeUnreachable,
		})

	case errors.Is(err, service.ErrInvalidExpiry):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Expiration is too soon",
			Code:    models.ErrCodeInvalidInput,
			Details: "Expiry must be at least five minutes in the future",
		})

	case errors.Is(err, service.ErrInvalidInterval):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Unknown interval",
			Code:    models.ErrCodeInvalidInput,
			Details: "Interval must be daily, monthly or yearly",
		})

	case errors.Is(err, repository.ErrAlreadyExists):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error: "Short id is already taken",
			Code:  models.ErrCodeConflict,
		})

	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
			Error: "Rate limit exceeded",
			Code:  models.ErrCodeRateLimited,
		})

	case errors.Is(err, service.ErrReservedPath):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "Unauthorized",
			Code:  models.ErrCodeUnauthorized,
		})

	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Internal server error",
			Code:  models.ErrCodeInternalError,
		})
	}
}
