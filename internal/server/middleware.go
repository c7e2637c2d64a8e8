package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/accounts/internal/audit/domain"
	obscontext "github.com/smallbiznis/accounts/internal/observability/context"
	"github.com/smallbiznis/accounts/internal/ratelimit"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"go.uber.org/zap"
)

const (
	contextAdminKey = "admin_user"
	adminRealm      = `Basic realm="accounts admin", charset="UTF-8"`
)

// AdminRequired authenticates the request with HTTP Basic credentials. Only
// active staff accounts get through.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		email, password, ok := c.Request.BasicAuth()
		if !ok || strings.TrimSpace(email) == "" {
			c.Header("WWW-Authenticate", adminRealm)
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.userSvc.Authenticate(c.Request.Context(), email, password)
		if err != nil {
			c.Header("WWW-Authenticate", adminRealm)
			AbortWithError(c, err)
			return
		}
		if !user.IsStaff {
			AbortWithError(c, ErrForbidden)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeAdmin), user.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextAdminKey, user)
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := adminFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), user, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func adminFromContext(c *gin.Context) (*userdomain.User, bool) {
	value, ok := c.Get(contextAdminKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*userdomain.User)
	return user, ok && user != nil
}

// RateLimit throttles an endpoint per client IP. Limiter failures let the
// request through.
func (s *Server) RateLimit(endpoint string, limit ratelimit.Limit) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := endpoint + ":" + c.ClientIP()
		res, err := s.limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			s.log.Warn("rate limiter unavailable", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), endpoint)
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			}
			AbortWithError(c, ErrTooManyRequest)
			return
		}
		c.Next()
	}
}
