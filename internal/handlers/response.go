// Package handlers holds the JSON response helpers shared by the HTTP handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kevin07696/membership-service/internal/domain"
	pkgerrors "github.com/kevin07696/membership-service/pkg/errors"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code,omitempty"`
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// StatusFor maps an error to its HTTP status code
func StatusFor(err error) int {
	var validation *pkgerrors.ValidationError
	switch {
	case errors.As(err, &validation), domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case domain.IsGuardError(err):
		return http.StatusConflict
	case domain.IsDomainError(err, domain.ErrorCodePaymentNotOwned):
		return http.StatusForbidden
	case domain.IsDomainError(err, domain.ErrorCodeLockHeld):
		return http.StatusLocked
	case domain.IsGatewayError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON encodes body with the given status
func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// WriteMessage sends an error body with a plain message
func WriteMessage(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	WriteJSON(w, logger, status, ErrorResponse{Error: message})
}

// WriteError maps err to a status and error body. Internal errors are not echoed back.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = string(domainErr.Code)
		resp.Error = domainErr.Message
		if len(domainErr.Details) > 0 {
			resp.Details = domainErr.Details
		}
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
		if status == http.StatusInternalServerError {
			resp.Code = string(domain.ErrorCodeInternalError)
			resp.Error = "internal server error"
			resp.Details = nil
		}
	}

	WriteJSON(w, logger, status, resp)
}
