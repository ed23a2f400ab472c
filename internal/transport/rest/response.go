package rest

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/AstroMined/debtonator-sub002/internal/domain"
)

type APIResponse struct {
	ErrorCode int    `json:"error_code"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
}

func Response(w http.ResponseWriter, message string, data any, errorCode int, status string, httpStatus int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	response := APIResponse{
		ErrorCode: errorCode,
		Status:    status,
		Message:   message,
		Data:      data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("[HTTP] write response error: %v", err)
	}
}

func Success(w http.ResponseWriter, message string, data any) {
	Response(w, message, data, 0, "success", http.StatusOK)
}

func SuccessCreated(w http.ResponseWriter, message string, data any) {
	Response(w, message, data, 0, "success", http.StatusCreated)
}

func SuccessAccepted(w http.ResponseWriter, message string, data any) {
	Response(w, message, data, 0, "success", http.StatusAccepted)
}

func Error(w http.ResponseWriter, message string, errorCode int, httpStatus int) {
	Response(w, message, nil, errorCode, "error", httpStatus)
}

func ErrorBadRequest(w http.ResponseWriter, message string) {
	Error(w, message, 400, http.StatusBadRequest)
}

func ErrorUnauthorized(w http.ResponseWriter, message string) {
	Error(w, message, 401, http.StatusUnauthorized)
}

func ErrorNotFound(w http.ResponseWriter, message string) {
	Error(w, message, 404, http.StatusNotFound)
}

func ErrorUnprocessable(w http.ResponseWriter, message string) {
	Error(w, message, 422, http.StatusUnprocessableEntity)
}

func ErrorInternal(w http.ResponseWriter, message string) {
	Error(w, message, 500, http.StatusInternalServerError)
}

// ErrorFromDomain is the single conversion point from the core's typed
// errors to HTTP responses.
func ErrorFromDomain(w http.ResponseWriter, err error) {
	kind, ok := domain.KindOf(err)
	if !ok {
		log.Printf("[HTTP] internal error: %v", err)
		ErrorInternal(w, "internal error")
		return
	}

	switch kind {
	case domain.KindValidation, domain.KindReference:
		ErrorBadRequest(w, err.Error())
	case domain.KindInsufficientFunds, domain.KindInsufficientCredit:
		ErrorUnprocessable(w, err.Error())
	case domain.KindNotFound:
		ErrorNotFound(w, err.Error())
	default:
		ErrorInternal(w, err.Error())
	}
}
