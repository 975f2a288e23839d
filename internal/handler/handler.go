// Package handler provides HTTP handlers for the storefront proxy API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"ecwid-proxy/internal/adapter"
	"ecwid-proxy/internal/middleware"
	"ecwid-proxy/internal/model"
	"ecwid-proxy/internal/timing"
)

// OriginProbe checks that the storefront origin answers.
type OriginProbe interface {
	Probe(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store  adapter.Storefront
	probe  OriginProbe
	logger *slog.Logger
}

// New creates a new Handler with the given storefront, origin probe, and logger.
// The probe may be nil to skip the storefront check in /readyz.
func New(store adapter.Storefront, probe OriginProbe, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		probe:  probe,
		logger: logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// REST transport - one route per cart action
	mux.HandleFunc("POST /cart/product/add", h.handleAddProduct)
	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("POST /cart/product/remove", h.handleRemoveProduct)
	mux.HandleFunc("POST /cart/clear", h.handleClearCart)
	mux.HandleFunc("POST /checkout", h.handleCheckout)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	mux.HandleFunc("GET /{$}", h.handleWelcome)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /readyz", h.handleReady)
}

// === Response Bodies ===

// resultResponse wraps an action result: {success:true, result:...}.
type resultResponse struct {
	Success bool `json:"success"`
	Result  any  `json:"result"`
}

// cartResponse wraps a cart snapshot: {success:true, cart:...}.
type cartResponse struct {
	Success bool        `json:"success"`
	Cart    *model.Cart `json:"cart"`
}

// errorResponse is the JSON structure for every failure.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// === Response Helpers ===

// track attaches a timing recorder to the request context.
func track(r *http.Request) (context.Context, *timing.Recorder) {
	rec := timing.New()
	return timing.WithRecorder(r.Context(), rec), rec
}

// writeTiming sets the Storefront-Timing header when anything was recorded.
func (h *Handler) writeTiming(w http.ResponseWriter, rec *timing.Recorder) {
	v, err := rec.Header()
	if err != nil {
		h.logger.Warn("failed to encode timing header", slog.String("error", err.Error()))
		return
	}
	if v != "" {
		w.Header().Set(timing.HeaderName, v)
	}
}

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends {success:false, error}. Errors without an APIError in
// their chain are logged and replaced by a generic message.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		h.log(ctx).ErrorContext(ctx, "internal error", slog.String("error", err.Error()))
		apiErr = model.NewExecutionError(err)
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Success: false,
		Error:   apiErr.Message,
	})
}

// log returns the handler logger tagged with the request ID.
func (h *Handler) log(ctx context.Context) *slog.Logger {
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		return h.logger.With(slog.String("request_id", id))
	}
	return h.logger
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// An empty body leaves v untouched. Returns an APIError if decoding fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.NewValidationError("body", "too large")
		}
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
