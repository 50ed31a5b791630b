package http

import (
	"net/http"
	"strconv"
	"time"

	"apiregistry/internal/domain"

	"github.com/gin-gonic/gin"
)

// enforceRateLimit keys on the caller address. A limiter error refuses the
// request, since the authorizer must not hand out policies unchecked.
func (s *Server) enforceRateLimit(c *gin.Context, sourceIP string) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	key := "authorize:source:" + sourceIP
	decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		s.logger.Warn().Err(err).Str("source_ip", sourceIP).Msg("rate limiter unavailable")
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
		return false
	}
	writeRateLimitHeaders(c, decision, time.Now())
	if !decision.Allowed {
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision, now time.Time) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if decision.ResetAt.IsZero() {
		return
	}
	c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	if !decision.Allowed {
		c.Header("Retry-After", strconv.Itoa(decision.RetryAfter(now)))
	}
}
