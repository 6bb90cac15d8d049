package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// bindMessages maps a struct field and a failed validation tag to a message.
type bindMessages map[string]map[string]string

func bindURI(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		c.Status(http.StatusNotFound)
		return false
	}
	return true
}
