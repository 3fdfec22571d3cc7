package httpadapter

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PabloGalante/twogether/internal/domain"
	"github.com/PabloGalante/twogether/internal/observability"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState, domain.KindDuplicateAnswer, domain.KindConflict:
		return http.StatusConflict
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a domain error to its status and the {"error","code"} body.
// Internal errors are logged and their text is not sent.
func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := statusOf(kind)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		observability.LoggerFromContext(c.Request.Context()).Error("request failed", "error", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: string(kind)})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, Code: string(domain.KindInvalidInput)})
}
