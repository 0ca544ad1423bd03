package middleware

import (
	"context"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"

	"aurelia-commerce/internal/httpapi"
	"aurelia-commerce/pkg/errutil"
)

// Identity is the caller as the core sees it: an opaque id plus a role.
type Identity struct {
	UserID string
	Role   string
}

// TokenVerifier resolves a bearer token into an active identity. The user
// service implements it; middleware depends only on this contract.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (Identity, error)
}

const identityKey = "auth.identity"

// IdentityFrom returns the authenticated identity, if any.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// RequireAuth rejects requests without a valid token.
func RequireAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			httpapi.Fail(c, errutil.Unauthorized("authorization token required", nil))
			c.Abort()
			return
		}

		id, err := v.VerifyToken(c.Request.Context(), token)
		if err != nil {
			httpapi.Fail(c, err)
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// OptionalAuth attaches an identity when a valid token is present and lets
// the request through either way. Guest checkout depends on this.
func OptionalAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if id, err := v.VerifyToken(c.Request.Context(), token); err == nil {
				c.Set(identityKey, id)
			}
		}
		c.Next()
	}
}

// RequireAccess enforces the role policy for the request path and method.
// It must run after RequireAuth.
func RequireAccess(e *casbin.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			httpapi.Fail(c, errutil.Unauthorized("authentication required", nil))
			c.Abort()
			return
		}

		allowed, err := e.Enforce(id.Role, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			httpapi.Fail(c, errutil.Internal("authorization check failed", err))
			c.Abort()
			return
		}
		if !allowed {
			httpapi.Fail(c, errutil.Forbidden("insufficient permissions", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}
