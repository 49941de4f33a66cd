package httpx

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("rid", rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

// Logger writes one access line per request. The caller, when known, is
// appended so a request can be traced to a user without a separate lookup.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		rid, _ := c.Get("rid")
		who := "-"
		if id, ok := IdentityFrom(c); ok {
			who = string(id.Role) + ":" + id.UserID
		}
		log.Printf("[http] rid=%v %s %s status=%d dur=%s who=%s",
			rid, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), who)
	}
}

// Recover turns a handler panic into a 500 with the usual error body.
func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				rid, _ := c.Get("rid")
				log.Printf("[http] rid=%v panic recovered route=%s: %v", rid, c.FullPath(), r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "internal server error"})
			}
		}()
		c.Next()
	}
}
