package controllers

import (
	"net/http"

	"github.com/imyme/imyme-ai/internal/services"
	"github.com/imyme/imyme-ai/pkg/domain"

	"github.com/gin-gonic/gin"
)

type transcriptionController struct{ svc services.SpeechService }

func NewTranscriptionController(svc services.SpeechService) *transcriptionController {
	return &transcriptionController{svc}
}

func (h *transcriptionController) Handle(c *gin.Context) {
	var req domain.TranscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, domain.CodeInvalidBody, "invalid body: audioUrl is required")
		return
	}
	tr, err := h.svc.Transcribe(c.Request.Context(), req.AudioURL)
	if err != nil {
		failCoded(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"text": tr.Text})
}
