package controllers

import (
	"net/http"

	"github.com/imyme/imyme-ai/internal/metrics"
	"github.com/imyme/imyme-ai/internal/middleware"
	"github.com/imyme/imyme-ai/internal/services"
	"github.com/imyme/imyme-ai/pkg/domain"

	"github.com/gin-gonic/gin"
)

type submitAnalysisController struct{ svc services.AnalysisService }

func NewSubmitAnalysisController(svc services.AnalysisService) *submitAnalysisController {
	return &submitAnalysisController{svc}
}

type submitResp struct {
	TaskID string            `json:"taskId"`
	Status domain.TaskStatus `json:"status"`
}

func (h *submitAnalysisController) Handle(c *gin.Context) {
	var req domain.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		fail(c, http.StatusBadRequest, domain.CodeInvalidBody, "invalid body: userText, criteria and history are required")
		return
	}

	taskID, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		middleware.Logger(c).ErrorContext(c.Request.Context(), "submit analysis", "err", err)
		fail(c, http.StatusInternalServerError, domain.CodeInternalError, "could not register task")
		return
	}
	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	ok(c, http.StatusAccepted, submitResp{TaskID: taskID, Status: domain.StatusPending})
}
