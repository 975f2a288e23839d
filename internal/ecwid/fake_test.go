package ecwid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ecwid-proxy/internal/model"
)

// fakeWidget stands in for window.Ecwid. It keeps a cart and counts calls.
type fakeWidget struct {
	mu      sync.Mutex
	items   []json.RawMessage
	adds    int
	gets    int
	removes int
	clears  int
	opens   int
	lastAdd model.AddProduct

	// beforeGet runs (unlocked) at the start of every GetCart.
	beforeGet func()
}

func newFakeWidget(items ...string) *fakeWidget {
	w := &fakeWidget{}
	for _, it := range items {
		w.items = append(w.items, json.RawMessage(it))
	}
	return w
}

func (w *fakeWidget) cart() *model.Cart {
	return model.NewCart(append([]json.RawMessage(nil), w.items...)...)
}

func (w *fakeWidget) counts() (adds, gets, removes, clears, opens int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.adds, w.gets, w.removes, w.clears, w.opens
}

// fakePage implements Page on top of a fakeWidget.
type fakePage struct {
	widget      *fakeWidget
	neverReady  bool
	navErr      error
	getErr      error
	actionDelay time.Duration
	closes      atomic.Int32
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	return p.navErr
}

func (p *fakePage) WaitWidget(ctx context.Context, timeout time.Duration) error {
	if !p.neverReady {
		return nil
	}
	select {
	case <-time.After(timeout):
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakePage) GetCart(ctx context.Context) (*model.Cart, error) {
	if hook := p.widget.beforeGet; hook != nil {
		hook()
	}
	if p.getErr != nil {
		return nil, p.getErr
	}
	p.widget.mu.Lock()
	defer p.widget.mu.Unlock()
	p.widget.gets++
	return p.widget.cart(), nil
}

func (p *fakePage) AddProduct(ctx context.Context, action model.AddProduct) (*model.AddResult, error) {
	if p.actionDelay > 0 {
		time.Sleep(p.actionDelay)
	}
	p.widget.mu.Lock()
	defer p.widget.mu.Unlock()
	p.widget.adds++
	p.widget.lastAdd = action

	item := fmt.Sprintf(`{"product":{"id":%d},"quantity":%d}`, action.ID, action.Quantity)
	p.widget.items = append(p.widget.items, json.RawMessage(item))

	var product model.Product
	_ = json.Unmarshal([]byte(fmt.Sprintf(`{"id":%d}`, action.ID)), &product)
	return &model.AddResult{
		Success:      true,
		AddedProduct: &product,
		UpdatedCart:  p.widget.cart(),
	}, nil
}

func (p *fakePage) RemoveProduct(ctx context.Context, index int) error {
	p.widget.mu.Lock()
	defer p.widget.mu.Unlock()
	p.widget.removes++
	if index < len(p.widget.items) {
		p.widget.items = append(p.widget.items[:index], p.widget.items[index+1:]...)
	}
	return nil
}

func (p *fakePage) ClearCart(ctx context.Context) error {
	p.widget.mu.Lock()
	defer p.widget.mu.Unlock()
	p.widget.clears++
	p.widget.items = nil
	return nil
}

func (p *fakePage) OpenCheckout(ctx context.Context) error {
	p.widget.mu.Lock()
	defer p.widget.mu.Unlock()
	p.widget.opens++
	return nil
}

func (p *fakePage) Close() error {
	p.closes.Add(1)
	return nil
}

// fakeBrowser hands out pages from newPage.
type fakeBrowser struct {
	product string
	newPage func(n int) *fakePage

	mu         sync.Mutex
	pages      []*fakePage
	pageErr    error
	versionErr error
	closes     atomic.Int32
}

func newFakeBrowser(w *fakeWidget) *fakeBrowser {
	return &fakeBrowser{
		product: "HeadlessChrome/120.0.6099.109",
		newPage: func(int) *fakePage { return &fakePage{widget: w} },
	}
}

func (b *fakeBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pageErr != nil {
		return nil, b.pageErr
	}
	p := b.newPage(len(b.pages))
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *fakeBrowser) Version(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.versionErr != nil {
		return "", b.versionErr
	}
	return b.product, nil
}

func (b *fakeBrowser) Close() error {
	b.closes.Add(1)
	return nil
}

func (b *fakeBrowser) allPages() []*fakePage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*fakePage(nil), b.pages...)
}

// fakeLauncher counts launches and returns browsers from next.
type fakeLauncher struct {
	launches atomic.Int32
	delay    time.Duration
	next     func(n int) (Browser, error)
}

func (l *fakeLauncher) launch(ctx context.Context) (Browser, error) {
	n := int(l.launches.Add(1))
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	return l.next(n)
}

func singleBrowser(b *fakeBrowser) *fakeLauncher {
	return &fakeLauncher{next: func(int) (Browser, error) { return b, nil }}
}

func failingThen(b *fakeBrowser, failures int) *fakeLauncher {
	return &fakeLauncher{next: func(n int) (Browser, error) {
		if n <= failures {
			return nil, errors.New("chrome not found")
		}
		return b, nil
	}}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBridge(cfg Config, l *fakeLauncher) *Bridge {
	if cfg.WidgetTimeout == 0 {
		cfg.WidgetTimeout = 20 * time.Millisecond
	}
	b, err := New(cfg, l.launch, testLogger())
	if err != nil {
		panic(err)
	}
	return b
}
