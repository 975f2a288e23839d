// Package ecwid drives an Ecwid storefront's in-page cart widget through a
// headless browser.
//
// Every call opens a fresh tab, loads the storefront, waits for the
// window.Ecwid.Cart global, runs one action, and closes the tab. The browser
// itself is either kept for the life of the process or launched per call.
package ecwid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"ecwid-proxy/internal/adapter"
	"ecwid-proxy/internal/model"
	"ecwid-proxy/internal/timing"
)

// DefaultStorefrontURL is the storefront page hosting the widget.
const DefaultStorefrontURL = "https://ecwid-storefront.vercel.app/"

// DefaultWidgetTimeout bounds the wait for window.Ecwid.Cart.
const DefaultWidgetTimeout = 7 * time.Second

// Config holds bridge settings.
type Config struct {
	StorefrontURL string
	WidgetTimeout time.Duration

	// ActionTimeout bounds the widget calls after the widget is ready.
	// Zero means the request context alone applies.
	ActionTimeout time.Duration

	// ReuseBrowser keeps one browser for the process lifetime. When false a
	// browser is launched for every call and closed afterwards.
	ReuseBrowser bool

	// MinBrowserVersion rejects browsers older than this semver floor
	// (e.g. "v112.0.0"). Empty disables the check.
	MinBrowserVersion string

	// MaxConcurrentPages caps open tabs. Zero means unbounded.
	MaxConcurrentPages int64
}

// stalenessProbeTimeout bounds the liveness probe after a failed page open.
const stalenessProbeTimeout = 5 * time.Second

// pageCloseTimeout bounds closing a tab.
const pageCloseTimeout = 5 * time.Second

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("bridge closed")

// Bridge implements adapter.Storefront against the Ecwid widget.
type Bridge struct {
	cfg    Config
	launch LaunchFunc
	logger *slog.Logger
	pages  *semaphore.Weighted

	// launches guarantees at most one launch in flight for the shared browser.
	launches singleflight.Group

	mu      sync.RWMutex
	browser Browser
	closed  bool
}

// New creates a bridge. No browser is started until the first call.
func New(cfg Config, launch LaunchFunc, logger *slog.Logger) (*Bridge, error) {
	if launch == nil {
		return nil, fmt.Errorf("launch func is required")
	}
	if cfg.StorefrontURL == "" {
		cfg.StorefrontURL = DefaultStorefrontURL
	}
	if cfg.WidgetTimeout <= 0 {
		cfg.WidgetTimeout = DefaultWidgetTimeout
	}
	if cfg.MinBrowserVersion != "" {
		if err := validateMinVersion(cfg.MinBrowserVersion); err != nil {
			return nil, err
		}
	}

	b := &Bridge{
		cfg:    cfg,
		launch: launch,
		logger: logger,
	}
	if cfg.MaxConcurrentPages > 0 {
		b.pages = semaphore.NewWeighted(cfg.MaxConcurrentPages)
	}
	return b, nil
}

// === Browser Lifecycle ===

// Start launches the shared browser ahead of the first request.
// A failure is returned but not fatal: the next call retries.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.cfg.ReuseBrowser {
		return nil
	}
	_, err := b.ensureBrowser(ctx)
	return err
}

// BrowserReady reports whether a shared browser handle is held.
// Always true in per-call mode, where there is nothing to hold.
func (b *Bridge) BrowserReady() bool {
	if !b.cfg.ReuseBrowser {
		return true
	}
	return b.current() != nil
}

// Close shuts down the shared browser. Later calls fail with ErrClosed.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	b.logger.Info("browser closed")
	return err
}

func (b *Bridge) current() Browser {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.browser
}

// ensureBrowser returns the shared browser, launching it if absent.
// Concurrent callers share a single launch; a failed launch leaves the handle
// unset so the next call tries again.
func (b *Bridge) ensureBrowser(ctx context.Context) (Browser, error) {
	if br := b.current(); br != nil {
		return br, nil
	}

	v, err, _ := b.launches.Do("browser", func() (interface{}, error) {
		b.mu.RLock()
		br, closed := b.browser, b.closed
		b.mu.RUnlock()
		if closed {
			return nil, model.NewLaunchError(ErrClosed)
		}
		if br != nil {
			return br, nil
		}

		// Detach from the triggering request: the browser outlives it.
		br, err := b.start(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			_ = br.Close()
			return nil, model.NewLaunchError(ErrClosed)
		}
		b.browser = br
		return br, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Browser), nil
}

// start launches a browser and checks its version.
func (b *Bridge) start(ctx context.Context) (Browser, error) {
	defer timing.FromContext(ctx).Track(timing.PhaseLaunch)()

	br, err := b.launch(ctx)
	if err != nil {
		b.logger.Error("browser launch failed", slog.String("error", err.Error()))
		return nil, model.NewLaunchError(err)
	}

	product, err := br.Version(ctx)
	if err != nil {
		_ = br.Close()
		b.logger.Error("browser version probe failed", slog.String("error", err.Error()))
		return nil, model.NewLaunchError(err)
	}
	if err := checkBrowserVersion(product, b.cfg.MinBrowserVersion); err != nil {
		_ = br.Close()
		b.logger.Error("browser rejected", slog.String("product", product), slog.String("error", err.Error()))
		return nil, model.NewLaunchError(err)
	}

	b.logger.Info("browser started", slog.String("product", product))
	return br, nil
}

// acquireBrowser returns a browser for one call and the func releasing it.
func (b *Bridge) acquireBrowser(ctx context.Context) (Browser, func(), error) {
	if b.cfg.ReuseBrowser {
		br, err := b.ensureBrowser(ctx)
		return br, func() {}, err
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, nil, model.NewLaunchError(ErrClosed)
	}

	br, err := b.start(ctx)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := br.Close(); err != nil {
			b.logger.Warn("closing per-call browser failed", slog.String("error", err.Error()))
		}
	}
	return br, release, nil
}

// dropIfStale forgets the shared browser when it no longer answers, so the
// next call relaunches instead of failing forever.
func (b *Bridge) dropIfStale(ctx context.Context, br Browser) {
	if !b.cfg.ReuseBrowser {
		return
	}
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stalenessProbeTimeout)
	defer cancel()
	if _, err := br.Version(probeCtx); err == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != br {
		return
	}
	b.browser = nil
	_ = br.Close()
	b.logger.Warn("stale browser connection dropped")
}

// === Page Lifecycle ===

// withPage runs fn against a freshly loaded storefront tab.
// The tab is closed exactly once on every path.
func (b *Bridge) withPage(ctx context.Context, kind model.ActionKind, fn func(ctx context.Context, p Page) error) (err error) {
	rec := timing.FromContext(ctx)
	logger := b.logger.With(slog.String("action", string(kind)))

	defer func() {
		if err != nil {
			apiErr := model.AsAPIError(err)
			logger.ErrorContext(ctx, "storefront action failed",
				slog.String("code", apiErr.Code),
				slog.String("error", err.Error()),
			)
			err = apiErr
		}
	}()

	if b.pages != nil {
		if err := b.pages.Acquire(ctx, 1); err != nil {
			return model.NewExecutionError(fmt.Errorf("waiting for page slot: %w", err))
		}
		defer b.pages.Release(1)
	}

	br, release, err := b.acquireBrowser(ctx)
	if err != nil {
		return err
	}
	defer release()

	page, err := br.NewPage(ctx)
	if err != nil {
		b.dropIfStale(ctx, br)
		return model.NewExecutionError(fmt.Errorf("open page: %w", err))
	}
	logger.DebugContext(ctx, "page created")
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.WarnContext(ctx, "page close failed", slog.String("error", cerr.Error()))
			return
		}
		logger.DebugContext(ctx, "page closed")
	}()

	stop := rec.Track(timing.PhaseNavigate)
	err = page.Navigate(ctx, b.cfg.StorefrontURL)
	stop()
	if err != nil {
		return model.NewNavigationError(fmt.Errorf("navigate to %s: %w", b.cfg.StorefrontURL, err))
	}
	logger.DebugContext(ctx, "navigated to storefront", slog.String("url", b.cfg.StorefrontURL))

	stop = rec.Track(timing.PhaseWidget)
	err = page.WaitWidget(ctx, b.cfg.WidgetTimeout)
	stop()
	if err != nil {
		return model.NewNavigationError(fmt.Errorf("wait for Ecwid.Cart (%s): %w", b.cfg.WidgetTimeout, err))
	}
	logger.DebugContext(ctx, "ecwid widget ready")

	actionCtx := ctx
	if b.cfg.ActionTimeout > 0 {
		var cancel context.CancelFunc
		actionCtx, cancel = context.WithTimeout(ctx, b.cfg.ActionTimeout)
		defer cancel()
	}

	stop = rec.Track(timing.PhaseDispatch)
	err = fn(actionCtx, page)
	stop()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "storefront action executed")
	return nil
}

// === Actions ===

// GetCart returns the current cart snapshot.
func (b *Bridge) GetCart(ctx context.Context) (*model.Cart, error) {
	var cart *model.Cart
	err := b.withPage(ctx, model.ActionGetCart, func(ctx context.Context, p Page) error {
		var err error
		cart, err = p.GetCart(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddProduct adds a product through a single Ecwid.Cart.addProduct call.
func (b *Bridge) AddProduct(ctx context.Context, action model.AddProduct) (*model.AddResult, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}

	var result *model.AddResult
	err := b.withPage(ctx, action.Kind(), func(ctx context.Context, p Page) error {
		var err error
		result, err = p.AddProduct(ctx, action)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveProduct removes the item at action.Index, then refetches the cart once.
func (b *Bridge) RemoveProduct(ctx context.Context, action model.RemoveProduct) (*model.RemoveResult, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}

	var result *model.RemoveResult
	err := b.withPage(ctx, action.Kind(), func(ctx context.Context, p Page) error {
		if err := p.RemoveProduct(ctx, action.Index); err != nil {
			return err
		}
		cart, err := p.GetCart(ctx)
		if err != nil {
			return err
		}
		result = &model.RemoveResult{
			Success:     true,
			Message:     model.MsgProductRemoved,
			UpdatedCart: cart,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ClearCart empties the cart.
func (b *Bridge) ClearCart(ctx context.Context) (*model.ClearResult, error) {
	err := b.withPage(ctx, model.ActionClearCart, func(ctx context.Context, p Page) error {
		return p.ClearCart(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &model.ClearResult{Success: true, Message: model.MsgCartCleared}, nil
}

// Checkout opens the checkout flow. An empty cart is rejected before the
// checkout is opened.
func (b *Bridge) Checkout(ctx context.Context) (*model.CheckoutResult, error) {
	err := b.withPage(ctx, model.ActionCheckout, func(ctx context.Context, p Page) error {
		cart, err := p.GetCart(ctx)
		if err != nil {
			return err
		}
		if cart.IsEmpty() {
			return model.NewRejectedError(model.MsgCartEmpty)
		}
		return p.OpenCheckout(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &model.CheckoutResult{Success: true, Message: model.MsgCheckoutOpened}, nil
}

// Verify Bridge implements the façade interfaces at compile time.
var (
	_ adapter.Storefront = (*Bridge)(nil)
	_ adapter.Prober     = (*Bridge)(nil)
)
