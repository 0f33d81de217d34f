package utils

import (
	"encoding/json"
	"net/http"
)

// APIResponse is the envelope every endpoint answers with. Data is always
// present so clients can rely on `data: null` for empty results.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
		Error:   error,
	}
}

func WriteJSON(w http.ResponseWriter, status int, body APIResponse) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}
