package gateway

import (
	"net/http"
	"strings"

	"github.com/example/tablepos/pkg/auth"
	"github.com/example/tablepos/pkg/repository"
	"github.com/gin-gonic/gin"
)

const (
	sessionHeader = "X-Session-ID"
	claimsKey     = "claims"
	sessionKey    = "session_id"
)

// identify attaches the staff claims of a bearer token, if one is sent. A
// request without a token continues as a guest.
func (g *Gateway) identify(c *gin.Context) {
	h := c.GetHeader("Authorization")
	if h == "" {
		c.Next()
		return
	}
	if !strings.HasPrefix(h, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
		return
	}

	claims, err := g.deps.Tokens.Parse(strings.TrimPrefix(h, "Bearer "))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Set(claimsKey, claims)
	c.Next()
}

func (g *Gateway) requireStaff(c *gin.Context) {
	if _, ok := claimsFrom(c); !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "staff login required"})
		return
	}
	c.Next()
}

func claimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func staffIdentity(c *gin.Context) *repository.StaffIdentity {
	claims, ok := claimsFrom(c)
	if !ok {
		return nil
	}
	return &repository.StaffIdentity{AuthID: claims.AuthID(), Email: claims.Email}
}

func requireSession(c *gin.Context) {
	id := strings.TrimSpace(c.GetHeader(sessionHeader))
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": sessionHeader + " header is required"})
		return
	}
	c.Set(sessionKey, id)
	c.Next()
}
