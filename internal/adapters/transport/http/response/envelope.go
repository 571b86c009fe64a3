// Package response writes the {ok, message, data} JSON envelope every
// endpoint answers with.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type ValidationEnvelope struct {
	OK      bool                `json:"ok"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func Success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, Envelope{OK: true, Message: message, Data: data})
}

func Unauthenticated(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, message)
}

func BadRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, message)
}

func Conflict(c *gin.Context, message string) {
	fail(c, http.StatusConflict, message)
}

func TooManyRequests(c *gin.Context, message string) {
	fail(c, http.StatusTooManyRequests, message)
}

func Unavailable(c *gin.Context, message string) {
	fail(c, http.StatusServiceUnavailable, message)
}

// Error answers 500. The message must not carry internal detail.
func Error(c *gin.Context, message string) {
	fail(c, http.StatusInternalServerError, message)
}

func ValidationErrors(c *gin.Context, fields map[string][]string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ValidationEnvelope{
		OK:      false,
		Message: "Validation error",
		Errors:  fields,
	})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{OK: false, Message: message})
}
