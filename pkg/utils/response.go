package utils

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every error the API returns.
type ErrorBody struct {
	Error string `json:"error"`
}

// ErrorResponse writes {"error": message} with the given status.
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorBody{Error: message})
}

// AbortWithError writes the error body and stops the handler chain.
func AbortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorBody{Error: message})
}
