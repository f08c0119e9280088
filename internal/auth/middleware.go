package auth

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"smartattendance/internal/model"
)

const sessionKey = "session"

// Session is the authenticated identity threaded through handlers.
type Session struct {
	User      model.User
	TokenID   string
	ExpiresAt time.Time
}

// Allows applies the role gate to the session user.
func (s Session) Allows(required ...model.Role) bool {
	return IsAllowed(s.User.Role, required...)
}

// SessionFrom returns the session stored by RequireSession.
func SessionFrom(c *gin.Context) (Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok
}

// RequireSession enforces bearer access tokens and rejects revoked ones.
func RequireSession(signer Signer, revoker Revoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": "unauthenticated"})
			return
		}
		claims, err := signer.Parse(tokenStr, TokenAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "unauthenticated"})
			return
		}
		revoked, err := revoker.Revoked(c.Request.Context(), claims.ID)
		if err != nil {
			log.Printf("revocation check failed: %v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable", "code": "storage_unavailable"})
			return
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session ended", "code": "unauthenticated"})
			return
		}
		c.Set(sessionKey, Session{
			User:      claims.User(),
			TokenID:   claims.ID,
			ExpiresAt: claims.ExpiresAt.Time,
		})
		c.Next()
	}
}

// RequireRoles allows the request through only if the session role passes the gate.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := SessionFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session", "code": "unauthenticated"})
			return
		}
		if !s.Allows(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": model.ErrForbidden.Error(), "code": "forbidden"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(header[len("bearer "):])
	return tok, tok != ""
}
