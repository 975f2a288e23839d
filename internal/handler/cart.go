package handler

import (
	"log/slog"
	"net/http"

	"ecwid-proxy/internal/model"
)

// handleAddProduct adds a product to the cart.
// POST /cart/product/add
func (h *Handler) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	ctx, rec := track(r)

	var req model.AddProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	action, err := req.Action()
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.log(ctx).InfoContext(ctx, "adding product",
		slog.Int64("product_id", action.ID),
		slog.Int("quantity", action.Quantity),
		slog.Int("options", len(action.Options)),
	)

	result, err := h.store.AddProduct(ctx, action)
	h.writeTiming(w, rec)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resultResponse{Success: true, Result: result})
}

// handleGetCart returns the cart snapshot.
// GET /cart
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	ctx, rec := track(r)

	h.log(ctx).InfoContext(ctx, "getting cart")

	cart, err := h.store.GetCart(ctx)
	h.writeTiming(w, rec)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, cartResponse{Success: true, Cart: cart})
}

// handleRemoveProduct removes one cart item by position.
// POST /cart/product/remove
func (h *Handler) handleRemoveProduct(w http.ResponseWriter, r *http.Request) {
	ctx, rec := track(r)

	var req model.RemoveProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	action, err := req.Action()
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.log(ctx).InfoContext(ctx, "removing product", slog.Int("index", action.Index))

	result, err := h.store.RemoveProduct(ctx, action)
	h.writeTiming(w, rec)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resultResponse{Success: true, Result: result})
}

// handleClearCart empties the cart. Any body is ignored.
// POST /cart/clear
func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, rec := track(r)

	h.log(ctx).InfoContext(ctx, "clearing cart")

	result, err := h.store.ClearCart(ctx)
	h.writeTiming(w, rec)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resultResponse{Success: true, Result: result})
}

// handleCheckout opens the storefront checkout.
// POST /checkout
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, rec := track(r)

	h.log(ctx).InfoContext(ctx, "opening checkout")

	result, err := h.store.Checkout(ctx)
	h.writeTiming(w, rec)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resultResponse{Success: true, Result: result})
}
