package auth

import (
	"net/http"
	"strings"

	"github.com/adiwicaksono/pd-tracker/internal/models"
	"github.com/gin-gonic/gin"
)

const actorContextKey = "actor"

// Middleware authenticates requests with a Bearer token and stores the
// resolved actor in the gin context.
func Middleware(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		actor, err := service.ResolveActor(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(actorContextKey, *actor)
		c.Next()
	}
}

// RequireSystemRole rejects requests whose actor lacks any of the given
// system roles. Must run after Middleware.
func RequireSystemRole(roles ...models.SystemRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		for _, role := range roles {
			if actor.SystemRole == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}

// ActorFrom returns the authenticated actor stored by Middleware.
// A zero Actor is returned on unauthenticated routes.
func ActorFrom(c *gin.Context) models.Actor {
	if v, ok := c.Get(actorContextKey); ok {
		if actor, ok := v.(models.Actor); ok {
			return actor
		}
	}
	return models.Actor{}
}
