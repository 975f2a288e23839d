// Package adapter defines the interface between the HTTP façade and a storefront.
// Implementations drive a storefront's cart and return typed results.
package adapter

import (
	"context"

	"ecwid-proxy/internal/model"
)

// Storefront abstracts the five cart actions a storefront widget supports.
// The Ecwid bridge is the production implementation.
//
// Methods return one typed result per action. Errors carry a *model.APIError
// in their chain describing which stage failed.
type Storefront interface {
	// AddProduct adds a product to the cart and returns the widget's callback
	// values: success flag, product, and the cart after the add.
	AddProduct(ctx context.Context, action model.AddProduct) (*model.AddResult, error)

	// GetCart returns the current cart snapshot.
	GetCart(ctx context.Context) (*model.Cart, error)

	// RemoveProduct removes the item at the given index and returns the cart
	// as refetched after removal.
	RemoveProduct(ctx context.Context, action model.RemoveProduct) (*model.RemoveResult, error)

	// ClearCart empties the cart.
	ClearCart(ctx context.Context) (*model.ClearResult, error)

	// Checkout opens the checkout flow. Fails with "Cart is empty" when there
	// is nothing to check out.
	Checkout(ctx context.Context) (*model.CheckoutResult, error)
}

// Prober is implemented by storefronts that can report readiness.
type Prober interface {
	// BrowserReady reports whether a browser handle is currently held.
	BrowserReady() bool
}
