package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type healthController struct{ service string }

func NewHealthController(service string) *healthController {
	return &healthController{service}
}

func (h *healthController) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}

func (h *healthController) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
