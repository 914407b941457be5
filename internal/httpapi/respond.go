package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"dailytales/internal/dispatch"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, envelope{Success: false, Error: msg, Kind: kind})
}

// writeError maps err onto the dispatch error taxonomy. The body carries the
// localized category message only, never the underlying cause.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var be *bindError
	if errors.As(err, &be) {
		writeFailure(w, http.StatusBadRequest, be.msg, string(dispatch.KindValidation))
		return
	}
	de := dispatch.Classify(err)
	kind := dispatch.KindOf(de)
	writeFailure(w, statusFor(kind), dispatch.UserMessage(de, s.lang(r)), string(kind))
}

func statusFor(k dispatch.Kind) int {
	switch k {
	case dispatch.KindValidation:
		return http.StatusBadRequest
	case dispatch.KindConfiguration:
		return http.StatusPreconditionFailed
	case dispatch.KindDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
