package ecwid

import (
	"context"
	"time"

	"ecwid-proxy/internal/model"
)

// Browser is a running browser the bridge can open pages in.
type Browser interface {
	// NewPage opens a blank tab.
	NewPage(ctx context.Context) (Page, error)

	// Version returns the browser product string, e.g. "HeadlessChrome/120.0.6099.109".
	// Also serves as a liveness probe.
	Version(ctx context.Context) (string, error)

	// Close shuts the browser down.
	Close() error
}

// Page is one browser tab, scoped to a single bridge call.
//
// The widget methods each invoke exactly one Ecwid JavaScript API call and
// resolve its callback. They assume WaitWidget has succeeded.
type Page interface {
	// Navigate loads url in the tab.
	Navigate(ctx context.Context, url string) error

	// WaitWidget blocks until window.Ecwid.Cart is defined or timeout elapses.
	WaitWidget(ctx context.Context, timeout time.Duration) error

	// GetCart calls Ecwid.Cart.get.
	GetCart(ctx context.Context) (*model.Cart, error)

	// AddProduct calls Ecwid.Cart.addProduct and returns its callback values.
	AddProduct(ctx context.Context, action model.AddProduct) (*model.AddResult, error)

	// RemoveProduct calls Ecwid.Cart.removeProduct for the item at index.
	RemoveProduct(ctx context.Context, index int) error

	// ClearCart calls Ecwid.Cart.clear.
	ClearCart(ctx context.Context) error

	// OpenCheckout calls Ecwid.Checkout.open.
	OpenCheckout(ctx context.Context) error

	// Close releases the tab. Must be safe to call after any failure.
	Close() error
}

// LaunchFunc starts or connects to a browser.
type LaunchFunc func(ctx context.Context) (Browser, error)
