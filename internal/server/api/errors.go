package api

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeError renders err as {"error": ..., "detail": ...} with the status
// from common.HTTPStatus. Internal errors are logged and not echoed.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	resp := errorResponse{Error: publicMessage(err)}

	var upstream *common.UpstreamError
	if errors.As(err, &upstream) {
		resp.Detail = upstream.Detail
		if resp.Detail == "" && upstream.Err != nil {
			resp.Detail = upstream.Err.Error()
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed",
			"action", c.GetString(actionKey), "status", status, "error", err)
	}

	c.AbortWithStatusJSON(status, resp)
}

func publicMessage(err error) string {
	var (
		validation *common.ValidationError
		upstream   *common.UpstreamError
	)
	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case errors.Is(err, common.ErrorValidation):
		return "invalid request"
	case errors.Is(err, common.ErrorUnauthorized):
		return "invalid username or password"
	case errors.Is(err, common.ErrorNotFound):
		return "user not found"
	case errors.Is(err, common.ErrorAlreadyExists):
		return "username already exists"
	case errors.As(err, &upstream):
		return upstream.Service + " request failed"
	case errors.Is(err, common.ErrorStoreWrite):
		return "failed to save data"
	default:
		return "internal server error"
	}
}
