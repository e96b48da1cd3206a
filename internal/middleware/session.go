package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/labquiz/internal/response"
)

// SessionChecker reports whether a token's session was superseded.
type SessionChecker interface {
	IsStale(studentID, sessionID string) bool
}

// RejectStaleSession rejects student tokens whose session id no longer matches
// the Active session (an admin reset followed by a new login elsewhere).
// Tokens of finished sessions pass so retried submissions reach the handler.
func RejectStaleSession(sessions SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if sessions.IsStale(claims.Subject, claims.ID) {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
