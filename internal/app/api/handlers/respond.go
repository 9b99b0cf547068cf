package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/response"
)

// fail writes the error with the HTTP status its class maps to.
func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	c.JSON(status, response.ErrorT(response.CodeFor(status), err.Error()))
}
