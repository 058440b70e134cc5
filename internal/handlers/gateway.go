package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/tablegate/tablegate/internal/models"
	"github.com/tablegate/tablegate/internal/services"
	pkghttp "github.com/tablegate/tablegate/pkg/http"
)

// GatewaySecretHeader carries the shared secret on machine calls.
const GatewaySecretHeader = "X-Gateway-Secret"

// GatewayGuardInterface is the pipeline entry point the handler calls.
type GatewayGuardInterface interface {
	Handle(ctx context.Context, providedSecret, callerIP string, body []byte) (any, error)
}

// GatewayHandler adapts HTTP to the gateway pipeline. All policy lives in the
// guard; this layer only moves bytes and maps errors to statuses.
type GatewayHandler struct {
	guard GatewayGuardInterface
}

// NewGatewayHandler creates a new GatewayHandler
func NewGatewayHandler(guard GatewayGuardInterface) *GatewayHandler {
	return &GatewayHandler{guard: guard}
}

// gatewayResponse is the success envelope for machine calls.
type gatewayResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Handle processes one POST /gateway request.
func (h *GatewayHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Unable to read request body")
		return
	}

	data, err := h.guard.Handle(r.Context(),
		r.Header.Get(GatewaySecretHeader),
		pkghttp.ExtractClientIP(r),
		body)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, gatewayResponse{Success: true, Data: data})
}

// writeGatewayError maps pipeline errors onto the wire contract. Validation
// failures name the offending field; everything internal stays a generic 500
// with the detail only in the server log.
func (h *GatewayHandler) writeGatewayError(w http.ResponseWriter, err error) {
	var rateLimited *services.RateLimitedError

	switch {
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Invalid gateway credentials")
	case errors.As(err, &rateLimited):
		pkghttp.WriteTooManyRequests(w, "Rate limit exceeded", rateLimited.RetryAfter)
	case errors.Is(err, models.ErrUnknownAction):
		pkghttp.WriteBadRequest(w, "Unknown action")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Malformed request")
	default:
		if fe, ok := models.AsFieldError(err); ok {
			pkghttp.WriteError(w, http.StatusBadRequest, "validation_failed", fe.Error())
			return
		}
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
	}
}
