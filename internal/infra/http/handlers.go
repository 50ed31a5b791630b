package http

import (
	"errors"
	"net/http"

	"apiregistry/internal/domain"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (s *Server) handleAuthorize(c *gin.Context) {
	var req domain.AuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid authorizer event")
		return
	}
	if req.RequestContext.Identity.SourceIP == "" {
		req.RequestContext.Identity.SourceIP = c.ClientIP()
	}
	if !s.enforceRateLimit(c, req.RequestContext.Identity.SourceIP) {
		return
	}
	if s.authorizer == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "authorizer not configured")
		return
	}

	resp, err := s.authorizer.Authorize(c.Request.Context(), req)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", req.RequestContext.RequestID).Msg("authorize failed")
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleNoRoute(c *gin.Context) {
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

// writeError never renders a policy document; the gateway treats any non-200
// as a refused request.
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status, code = http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, domain.ErrCancelled):
		status, code = http.StatusServiceUnavailable, "CANCELLED"
	case errors.Is(err, domain.ErrConfig):
		status, code = http.StatusInternalServerError, "CONFIG"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
