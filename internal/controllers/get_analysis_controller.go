package controllers

import (
	"errors"
	"net/http"

	"github.com/imyme/imyme-ai/internal/services"
	"github.com/imyme/imyme-ai/pkg/domain"

	"github.com/gin-gonic/gin"
)

type getAnalysisController struct{ svc services.TaskService }

func NewGetAnalysisController(svc services.TaskService) *getAnalysisController {
	return &getAnalysisController{svc}
}

type statusResp struct {
	TaskID string                 `json:"taskId"`
	Status domain.TaskStatus      `json:"status"`
	Result *domain.AnalysisResult `json:"result"`
}

func (h *getAnalysisController) Handle(c *gin.Context) {
	taskID := c.Param("taskId")
	rec, err := h.svc.GetStatus(c.Request.Context(), taskID)
	if errors.Is(err, services.ErrTaskNotFound) {
		fail(c, http.StatusNotFound, domain.CodeTaskNotFound, "task not found")
		return
	}
	if err != nil {
		failCoded(c, err)
		return
	}

	data := statusResp{TaskID: rec.ID, Status: rec.Status, Result: rec.Result}
	if rec.Status == domain.StatusFailed {
		c.JSON(http.StatusOK, domain.Envelope{Success: false, Data: data, Error: rec.Error})
		return
	}
	ok(c, http.StatusOK, data)
}
