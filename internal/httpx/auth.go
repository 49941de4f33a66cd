package httpx

import (
	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/entregas-ecom/internal/apperr"
	"github.com/MikeMC777/entregas-ecom/internal/auth"
)

const identityKey = "identity"

type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Auth requires a valid bearer token and stores the caller's identity on the
// context.
func Auth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			Fail(c, "auth", apperr.Auth("missing_token", "bearer token required"))
			return
		}
		id, err := v.Verify(token)
		if err != nil {
			Fail(c, "auth", err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// Require rejects callers whose role may not perform action.
func Require(action auth.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		if err := auth.Authorize(id, action); err != nil {
			Fail(c, "auth", err)
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
