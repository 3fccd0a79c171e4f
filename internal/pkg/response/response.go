package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// OK sends a 200 response. Arrays/slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}
	}
	c.JSON(http.StatusOK, data)
}

// Accepted sends a 202 response.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, data)
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Not authenticated"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": 0, "code": http.StatusUnauthorized, "message": message})
}

// NotFoundMsg sends a 404 error with a custom message.
func NotFoundMsg(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"ok": 0, "code": http.StatusNotFound, "message": message})
}

// TooManyRequests sends a 429 error response.
func TooManyRequests(c *gin.Context) {
	c.Header("Retry-After", "1")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"ok": 0, "code": http.StatusTooManyRequests, "message": "Too many requests"})
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": 0, "code": http.StatusInternalServerError, "message": err.Error()})
}
