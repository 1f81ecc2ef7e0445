package http

import (
	"github.com/gin-gonic/gin"

	"github.com/yanqian/trip-planner/internal/domain/access"
)

const sessionClaimsKey = "session_claims"

func setClaims(c *gin.Context, claims access.Claims) {
	c.Set(sessionClaimsKey, claims)
}

func getClaims(c *gin.Context) (access.Claims, bool) {
	value, ok := c.Get(sessionClaimsKey)
	if !ok {
		return access.Claims{}, false
	}
	claims, ok := value.(access.Claims)
	return claims, ok
}
