package utils

import "github.com/gin-gonic/gin"

func JSONSuccess(c *gin.Context, code int, data interface{}) {
	c.JSON(code, gin.H{"success": true, "data": data})
}

// JSONError writes the error envelope; kind is the coarse class, code the stable machine code.
func JSONError(c *gin.Context, status int, code, kind, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"kind":    kind,
			"message": message,
		},
	})
}

// AbortError is JSONError plus c.Abort for middleware.
func AbortError(c *gin.Context, status int, code, kind, message string) {
	JSONError(c, status, code, kind, message)
	c.Abort()
}
