package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proctorly/proctorly-backend/internal/config"
	"github.com/proctorly/proctorly-backend/internal/response"
)

// HeaderSecureBrowserKey carries the locked-down browser's config-key hash.
// The environment guard verifies the value; this middleware only rejects
// requests that lack the header entirely, before any session work happens.
const HeaderSecureBrowserKey = "X-Secure-Browser-Key"

// RequireSecureBrowser rejects session-entry requests that do not present a
// secure-browser key header. Disabled when no accepted keys are configured.
func RequireSecureBrowser(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(cfg.SecureBrowserKeys) == 0 {
			c.Next()
			return
		}
		if c.GetHeader(HeaderSecureBrowserKey) == "" {
			response.AbortFail(c, http.StatusForbidden, response.ErrNotSecureBrowser)
			return
		}
		c.Next()
	}
}
