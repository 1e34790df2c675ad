// Package membership serves the member-facing JSON API over the membership commands.
package membership

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kevin07696/membership-service/internal/handlers"
	svc "github.com/kevin07696/membership-service/internal/services/membership"
	"github.com/kevin07696/membership-service/internal/services/ports"
	"github.com/kevin07696/membership-service/pkg/observability"
	"github.com/kevin07696/membership-service/pkg/resilience"
)

const maxBodyBytes = 1 << 16

// Handler handles the membership API endpoints
type Handler struct {
	service  ports.MembershipService
	timeouts *resilience.TimeoutConfig
	logger   *zap.Logger
}

// NewHandler creates a new membership handler
func NewHandler(service ports.MembershipService, timeouts *resilience.TimeoutConfig, logger *zap.Logger) *Handler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	return &Handler{
		service:  service,
		timeouts: timeouts,
		logger:   logger,
	}
}

// Register mounts the routes on mux, wrapping each in the given middleware
func (h *Handler) Register(mux *http.ServeMux, middleware ...func(http.Handler) http.Handler) {
	routes := map[string]http.HandlerFunc{
		"GET /api/v1/members/{memberID}/membership":                    h.Status,
		"POST /api/v1/members/{memberID}/enrol":                        h.Enrol,
		"POST /api/v1/members/{memberID}/cancel":                       h.Cancel,
		"POST /api/v1/members/{memberID}/reactivate":                   h.Reactivate,
		"POST /api/v1/members/{memberID}/payment-method":               h.UpdatePaymentMethod,
		"POST /api/v1/members/{memberID}/convert":                      h.ConvertToRecurring,
		"POST /api/v1/members/{memberID}/payments/{paymentID}/verify": h.VerifyPayment,
	}

	for pattern, fn := range routes {
		var handler http.Handler = fn
		for i := len(middleware) - 1; i >= 0; i-- {
			handler = middleware[i](handler)
		}
		mux.Handle(pattern, observability.InstrumentHandler(pattern, handler))
	}
}

// EnrolBody is the request body of POST /enrol
type EnrolBody struct {
	Recurring bool `json:"recurring"`
}

// Status handles GET /api/v1/members/{memberID}/membership
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	view, err := h.service.Status(ctx, r.PathValue("memberID"))
	if err != nil {
		handlers.WriteError(w, h.logger, err)
		return
	}
	handlers.WriteJSON(w, h.logger, http.StatusOK, view)
}

// Enrol handles POST /api/v1/members/{memberID}/enrol
func (h *Handler) Enrol(w http.ResponseWriter, r *http.Request) {
	var body EnrolBody
	if err := decodeOptional(r, &body); err != nil {
		handlers.WriteMessage(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	result, err := h.service.Enrol(ctx, svc.EnrolRequest{
		MemberID:  r.PathValue("memberID"),
		Recurring: body.Recurring,
	})
	if err != nil {
		handlers.WriteError(w, h.logger, err)
		return
	}
	handlers.WriteJSON(w, h.logger, http.StatusCreated, result)
}

// Cancel handles POST /api/v1/members/{memberID}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.service.Cancel)
}

// Reactivate handles POST /api/v1/members/{memberID}/reactivate
func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.service.Reactivate)
}

// UpdatePaymentMethod handles POST /api/v1/members/{memberID}/payment-method
func (h *Handler) UpdatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.service.UpdatePaymentMethod)
}

// ConvertToRecurring handles POST /api/v1/members/{memberID}/convert
func (h *Handler) ConvertToRecurring(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	result, err := h.service.ConvertToRecurring(ctx, r.PathValue("memberID"))
	if err != nil {
		handlers.WriteError(w, h.logger, err)
		return
	}
	handlers.WriteJSON(w, h.logger, http.StatusCreated, result)
}

// VerifyPayment handles POST /api/v1/members/{memberID}/payments/{paymentID}/verify
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	result, err := h.service.VerifyPayment(ctx, r.PathValue("memberID"), r.PathValue("paymentID"))
	if err != nil {
		handlers.WriteError(w, h.logger, err)
		return
	}
	handlers.WriteJSON(w, h.logger, http.StatusOK, result)
}

func (h *Handler) command(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, memberID string) (*svc.CommandResult, error)) {
	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	result, err := fn(ctx, r.PathValue("memberID"))
	if err != nil {
		handlers.WriteError(w, h.logger, err)
		return
	}
	handlers.WriteJSON(w, h.logger, http.StatusOK, result)
}

// decodeOptional decodes a JSON body when one is present
func decodeOptional(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}
