package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/trip-planner/internal/domain/access"
	apperrors "github.com/yanqian/trip-planner/pkg/errors"
)

const codeInvalidToken = "invalid_token"

// TokenValidator checks session access tokens.
type TokenValidator interface {
	Validate(token string) (access.Claims, error)
}

// sessionAuth requires a bearer token whose session id matches the :id path parameter.
func sessionAuth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing authorization header", nil))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "invalid authorization header", nil))
			return
		}
		claims, err := tokens.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			status := http.StatusUnauthorized
			code := codeInvalidToken
			if !apperrors.IsCode(err, codeInvalidToken) {
				status = http.StatusInternalServerError
				code = "auth_failed"
			}
			abortWithError(c, NewHTTPError(status, code, "invalid access token", err))
			return
		}
		if claims.SessionID != c.Param("id") {
			abortWithError(c, NewHTTPError(http.StatusForbidden, "forbidden", "token does not grant access to this session", nil))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}
