package controllers

import (
	"net/http"

	"github.com/imyme/imyme-ai/internal/services"
	"github.com/imyme/imyme-ai/pkg/domain"

	"github.com/gin-gonic/gin"
)

type warmupController struct{ svc services.SpeechService }

func NewWarmupController(svc services.SpeechService) *warmupController {
	return &warmupController{svc}
}

func (h *warmupController) Handle(c *gin.Context) {
	res, err := h.svc.Warmup(c.Request.Context())
	if err != nil {
		failCoded(c, err)
		return
	}
	status := "WARMING_UP"
	if res.Status == domain.WarmupMockSuccess {
		status = string(res.Status)
	}
	ok(c, http.StatusOK, gin.H{"status": status, "jobId": res.JobID})
}
