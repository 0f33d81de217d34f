package api

import (
	"fmt"
	"net/http"

	"ms-booking/internal/domain"
	"ms-booking/internal/utils"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidRequest,
		domain.KindCapacityExceeded,
		domain.KindPaymentFailed,
		domain.KindDuplicatePaymentReference:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUpstreamGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	if err := utils.WriteJSON(w, status, utils.SuccessResponse(message, data)); err != nil {
		h.Logger.Error("HTTP", fmt.Sprintf("Failed to write response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("HTTP", fmt.Sprintf("%s %s failed: %v", r.Method, r.URL.Path, err))
	}

	if werr := utils.WriteJSON(w, status, utils.ErrorResponse(domain.MessageOf(err), kind.String())); werr != nil {
		h.Logger.Error("HTTP", fmt.Sprintf("Failed to write error response: %v", werr))
	}
}
