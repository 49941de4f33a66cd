package httpx

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/entregas-ecom/internal/apperr"
)

func StatusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindAuth, apperr.KindIntegrity:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// Fail renders err as {"error": code, "message": text} and aborts. Causes of
// internal errors are logged, never returned.
func Fail(c *gin.Context, route string, err error) {
	e := apperr.As(err)
	status := StatusOf(e.Kind)
	rid, _ := c.Get("rid")
	msg := e.Message
	if status >= http.StatusInternalServerError {
		log.Printf("[%s] rid=%v internal error: %s: %v", route, rid, e.Message, e.Err)
		msg = "internal server error"
	} else {
		log.Printf("[%s] rid=%v returning error %d: %s", route, rid, status, e.Code)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": e.Code, "message": msg})
}
