package stripe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	pkgerrors "github.com/kevin07696/membership-service/pkg/errors"
	stripego "github.com/stripe/stripe-go/v74"
)

// classifyError converts a stripe-go error into a GatewayError carrying retry classification
func classifyError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}

	var se *stripego.Error
	if errors.As(err, &se) {
		gwErr := &pkgerrors.GatewayError{
			Err:            err,
			Operation:      operation,
			Code:           string(se.Code),
			Message:        se.Msg,
			HTTPStatusCode: se.HTTPStatusCode,
		}

		switch {
		case se.HTTPStatusCode == http.StatusTooManyRequests:
			gwErr.Category = pkgerrors.CategoryRateLimited
			gwErr.IsRetriable = true
		case se.HTTPStatusCode == http.StatusUnauthorized || se.HTTPStatusCode == http.StatusForbidden:
			gwErr.Category = pkgerrors.CategoryAuthentication
		case se.HTTPStatusCode == http.StatusNotFound || se.Code == stripego.ErrorCodeResourceMissing:
			gwErr.Category = pkgerrors.CategoryNotFound
		case se.Type == stripego.ErrorTypeCard:
			gwErr.Category = pkgerrors.CategoryCardDeclined
		case se.Type == stripego.ErrorTypeIdempotency:
			gwErr.Category = pkgerrors.CategoryIdempotency
		case se.HTTPStatusCode >= http.StatusInternalServerError || se.Type == stripego.ErrorTypeAPI:
			gwErr.Category = pkgerrors.CategorySystemError
			gwErr.IsRetriable = true
		default:
			gwErr.Category = pkgerrors.CategoryInvalidRequest
		}
		if gwErr.Message == "" {
			gwErr.Message = http.StatusText(se.HTTPStatusCode)
		}
		return gwErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &pkgerrors.GatewayError{
			Err:         err,
			Operation:   operation,
			Message:     netErr.Error(),
			Category:    pkgerrors.CategoryNetworkError,
			IsRetriable: true,
		}
	}

	return &pkgerrors.GatewayError{
		Err:       err,
		Operation: operation,
		Message:   err.Error(),
		Category:  pkgerrors.CategorySystemError,
	}
}

func notFound(operation, message string) error {
	return pkgerrors.NewGatewayError(operation, message, pkgerrors.CategoryNotFound, false)
}

// categoryOf labels an error for the gateway call metric
func categoryOf(err error) pkgerrors.ErrorCategory {
	var gwErr *pkgerrors.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Category
	}
	return "canceled"
}
