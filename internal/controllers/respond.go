package controllers

import (
	"errors"
	"net/http"

	"github.com/imyme/imyme-ai/internal/middleware"
	"github.com/imyme/imyme-ai/internal/services"
	"github.com/imyme/imyme-ai/pkg/domain"

	"github.com/gin-gonic/gin"
)

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, domain.OK(data))
}

func fail(c *gin.Context, status int, code domain.ErrorCode, msg string) {
	c.JSON(status, domain.Fail(code, msg))
}

// failCoded answers with the code carried by err: 400 for input problems,
// 500 for everything else.
func failCoded(c *gin.Context, err error) {
	var ce *services.CodedError
	if !errors.As(err, &ce) {
		middleware.Logger(c).ErrorContext(c.Request.Context(), "unclassified error", "err", err)
		fail(c, http.StatusInternalServerError, domain.CodeInternalError, err.Error())
		return
	}
	status := http.StatusInternalServerError
	if errors.Is(err, services.ErrInvalidInput) {
		status = http.StatusBadRequest
	}
	te := ce.TaskError()
	if status >= http.StatusInternalServerError {
		middleware.Logger(c).ErrorContext(c.Request.Context(), "request failed", "code", te.Code, "err", err)
	}
	fail(c, status, te.Code, te.Message)
}
