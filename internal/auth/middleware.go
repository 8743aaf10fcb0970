package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is where TeacherAuth stores parsed claims in the gin context.
const ClaimsKey = "claims"

// TeacherAuth enforces bearer JWT tokens signed with HS256 and stashes the
// claims for handlers. Every attendance route sits behind this middleware,
// so handlers can assume a teacher id is present.
func TeacherAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// TeacherID extracts the authenticated teacher id from the gin context.
// Calling it outside TeacherAuth-protected routes is a programming error.
func TeacherID(c *gin.Context) string {
	claimsAny, ok := c.Get(ClaimsKey)
	if !ok {
		panic("auth: TeacherID called on an unauthenticated route")
	}
	return claimsAny.(Claims).Subject
}
