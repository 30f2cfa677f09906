package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/shortlink/internal/service"
	"go.uber.org/zap"
)

// RedirectHandler serves the public short link surface.
type RedirectHandler struct {
	resolver *service.ResolverService
	log      *zap.Logger
}

// NewRedirectHandler creates a new redirect handler.
func NewRedirectHandler(resolver *service.ResolverService, log *zap.Logger) *RedirectHandler {
	return &RedirectHandler{resolver: resolver, log: log}
}

// Redirect handles GET /:shortCode.
//
// Successful visits 302 to the original URL; missing and expired
// codes 302 to the not-found page. A visitor whose visit cannot be
// recorded gets a 500 and no redirect — and never a stack trace or
// store error detail.
func (h *RedirectHandler) Redirect(c *gin.Context) {
	shortCode := c.Param("shortCode")

	result, err := h.resolver.Resolve(c.Request.Context(), shortCode, c.Request.Header)
	if err != nil {
		h.log.Error("redirect failed",
			zap.String("short_code", shortCode),
			zap.Error(err))
		handleError(c, err)
		return
	}

	// 302 keeps browsers asking every time, which is what makes
	// per-visit analytics possible at all.
	c.Redirect(http.StatusFound, result.Location)
}
