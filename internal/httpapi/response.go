package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"aurelia-commerce/pkg/errutil"
)

// Envelope is the canonical wire shape of every response. Entities are
// converted into it exactly once, at this boundary.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func OKMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Fail renders a service error. BaseError decides the status code; anything
// else is an internal fault and keeps its detail out of the response.
func Fail(c *gin.Context, err error) {
	var be errutil.BaseError
	if errors.As(err, &be) {
		c.JSON(be.Code.HTTPStatus(), Envelope{
			Success: false,
			Message: be.Message,
			Error:   string(be.Code),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, Envelope{
		Success: false,
		Message: "internal server error",
		Error:   string(errutil.StatusInternal),
	})
}
