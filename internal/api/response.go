package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const correlationKey = "correlationId"

// Response is the envelope of every JSON reply.
type Response struct {
	Result        string      `json:"result"`
	Data          interface{} `json:"data,omitempty"`
	Code          string      `json:"code,omitempty"`
	Message       string      `json:"message,omitempty"`
	Details       interface{} `json:"details,omitempty"`
	CorrelationID string      `json:"correlationId"`
}

// correlationID returns the id assigned to the request by the logging
// middleware, or a fresh one.
func correlationID(c *gin.Context) string {
	if id := c.GetString(correlationKey); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Result:        "ok",
		Data:          data,
		CorrelationID: correlationID(c),
	})
}

func writeErrorResponse(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, Response{
		Result:        "error",
		Code:          code,
		Message:       message,
		Details:       details,
		CorrelationID: correlationID(c),
	})
}

// writeError maps err onto the envelope.
func writeError(c *gin.Context, err error) {
	e := ToAPIError(err)
	writeErrorResponse(c, e.StatusCode, e.Code, e.Message, e.Details)
}
