package ecwid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"ecwid-proxy/internal/model"
)

// LaunchMode selects how the browser is obtained.
type LaunchMode string

const (
	// ModeLocal starts a desktop Chrome/Chromium found on this machine.
	ModeLocal LaunchMode = "local"

	// ModeServerless starts a packaged Chromium with flags that work inside
	// Lambda / Cloud Run style sandboxes (no /dev/shm, no zygote, one process).
	ModeServerless LaunchMode = "serverless"

	// ModeRemote connects to an already-running browser's DevTools endpoint.
	ModeRemote LaunchMode = "remote"
)

// DefaultServerlessBin is where serverless images conventionally unpack Chromium.
const DefaultServerlessBin = "/opt/chromium"

// LaunchConfig describes how to obtain a browser.
type LaunchConfig struct {
	Mode       LaunchMode
	Bin        string // Browser executable; resolved per mode when empty
	ControlURL string // DevTools WebSocket URL, remote mode only
	Headless   bool
	Flags      []string // Extra command-line flags, "--name=value" or "--name"
}

// launchFlags apply to every browser started here. Storefront previews are
// often served with self-signed certificates.
var launchFlags = []string{
	"ignore-certificate-errors",
}

// serverlessFlags mirror what serverless Chromium packages pass by default.
var serverlessFlags = []string{
	"single-process",
	"no-zygote",
	"disable-dev-shm-usage",
	"disable-gpu",
}

// desktopChromePaths lists the stock install location per OS.
var desktopChromePaths = map[string]string{
	"windows": `C:/Program Files/Google/Chrome/Application/chrome.exe`,
	"darwin":  "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

// NewRodLauncher returns a LaunchFunc backed by go-rod.
func NewRodLauncher(cfg LaunchConfig, logger *slog.Logger) LaunchFunc {
	return func(ctx context.Context) (Browser, error) {
		if cfg.Mode == ModeRemote {
			return connectRemote(ctx, cfg.ControlURL, logger)
		}

		l, err := newLauncher(cfg)
		if err != nil {
			return nil, err
		}
		l = l.Context(ctx)

		controlURL, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		logger.Debug("chrome launched",
			slog.String("mode", string(cfg.Mode)),
			slog.String("bin", l.Get(flags.Bin)),
		)

		browser := rod.New().ControlURL(controlURL).Context(ctx)
		if err := browser.Connect(); err != nil {
			l.Kill()
			return nil, fmt.Errorf("connect to chrome: %w", err)
		}
		return &rodBrowser{browser: browser, launcher: l}, nil
	}
}

// connectRemote attaches to a browser this process does not own. The
// websocket is dialed here so Close can hang up without shutting Chrome down.
func connectRemote(ctx context.Context, controlURL string, logger *slog.Logger) (Browser, error) {
	wsURL, err := resolveControlURL(controlURL)
	if err != nil {
		return nil, err
	}

	ws := &cdp.WebSocket{}
	if err := ws.Connect(ctx, wsURL, nil); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	browser := rod.New().Client(cdp.New().Start(ws)).Context(ctx)
	if err := browser.Connect(); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	logger.Debug("connected to remote chrome", slog.String("url", wsURL))

	return &rodBrowser{browser: browser, conn: ws}, nil
}

// resolveControlURL turns a DevTools HTTP endpoint (http://host:9222) into
// the browser websocket URL. ws:// and wss:// URLs are used as given.
func resolveControlURL(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("no browser control URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid browser control URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return raw, nil
	case "http", "https":
		wsURL, err := launcher.ResolveURL(raw)
		if err != nil {
			return "", fmt.Errorf("resolve browser control URL: %w", err)
		}
		return wsURL, nil
	default:
		return "", fmt.Errorf("unsupported browser control URL scheme %q", u.Scheme)
	}
}

// newLauncher builds a launcher for local or serverless mode.
func newLauncher(cfg LaunchConfig) (*launcher.Launcher, error) {
	bin, err := resolveBin(cfg.Mode, cfg.Bin, runtime.GOOS)
	if err != nil {
		return nil, err
	}

	l := launcher.New().Headless(cfg.Headless)
	if bin != "" {
		l = l.Bin(bin)
	}
	for _, name := range launchFlags {
		l = l.Set(flags.Flag(name))
	}

	if cfg.Mode == ModeServerless {
		l = l.NoSandbox(true).Leakless(false)
		for _, name := range serverlessFlags {
			l = l.Set(flags.Flag(name))
		}
	}

	for _, raw := range cfg.Flags {
		name, val, hasVal := parseFlag(raw)
		if name == "" {
			continue
		}
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l, nil
}

// resolveBin picks the browser executable for mode. An empty result lets the
// launcher fall back to its own lookup (and download).
func resolveBin(mode LaunchMode, bin, goos string) (string, error) {
	if bin != "" {
		return bin, nil
	}

	switch mode {
	case ModeServerless:
		return DefaultServerlessBin, nil
	case ModeLocal, "":
		if p, ok := desktopChromePaths[goos]; ok && fileExists(p) {
			return p, nil
		}
		if p, ok := launcher.LookPath(); ok {
			return p, nil
		}
		return "", nil
	default:
		return "", fmt.Errorf("unsupported launch mode: %s", mode)
	}
}

// parseFlag splits "--name=value" into its parts.
func parseFlag(raw string) (name, val string, hasVal bool) {
	flagStr := strings.TrimLeft(strings.TrimSpace(raw), "-")
	return strings.Cut(flagStr, "=")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// === rod Browser ===

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher // nil when connected remotely
	conn     io.Closer          // remote websocket, nil when launched here
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	return &rodPage{page: page}, nil
}

func (b *rodBrowser) Version(ctx context.Context) (string, error) {
	v, err := b.browser.Context(ctx).Version()
	if err != nil {
		return "", err
	}
	return v.Product, nil
}

// Close shuts down a browser launched here. A remote browser is shared with
// other clients, so only our connection to it is closed.
func (b *rodBrowser) Close() error {
	if b.launcher == nil {
		if b.conn == nil {
			return nil
		}
		return b.conn.Close()
	}

	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

// === rod Page ===

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	return p.page.Context(ctx).Navigate(url)
}

func (p *rodPage) WaitWidget(ctx context.Context, timeout time.Duration) error {
	wait := p.page.Context(ctx).Timeout(timeout)
	defer wait.CancelTimeout()
	return wait.Wait(rod.Eval(widgetReadyJS))
}

func (p *rodPage) GetCart(ctx context.Context) (*model.Cart, error) {
	var cart model.Cart
	if err := p.call(ctx, &cart, getCartJS); err != nil {
		return nil, fmt.Errorf("Ecwid.Cart.get: %w", err)
	}
	return &cart, nil
}

func (p *rodPage) AddProduct(ctx context.Context, action model.AddProduct) (*model.AddResult, error) {
	req := struct {
		ID       int64          `json:"id"`
		Quantity int            `json:"quantity"`
		Options  map[string]any `json:"options"`
	}{action.ID, action.Quantity, action.Options}

	var result model.AddResult
	if err := p.call(ctx, &result, addProductJS, req); err != nil {
		return nil, fmt.Errorf("Ecwid.Cart.addProduct: %w", err)
	}
	return &result, nil
}

func (p *rodPage) RemoveProduct(ctx context.Context, index int) error {
	if err := p.call(ctx, nil, removeProductJS, index); err != nil {
		return fmt.Errorf("Ecwid.Cart.removeProduct: %w", err)
	}
	return nil
}

func (p *rodPage) ClearCart(ctx context.Context) error {
	if err := p.call(ctx, nil, clearCartJS); err != nil {
		return fmt.Errorf("Ecwid.Cart.clear: %w", err)
	}
	return nil
}

func (p *rodPage) OpenCheckout(ctx context.Context) error {
	if err := p.call(ctx, nil, openCheckoutJS); err != nil {
		return fmt.Errorf("Ecwid.Checkout.open: %w", err)
	}
	return nil
}

// Close uses a fresh context so the tab is released even when the request
// context is already done. The deadline keeps a hung browser from holding
// the page slot.
func (p *rodPage) Close() error {
	return withCloseDeadline(func(ctx context.Context) error {
		return p.page.Context(ctx).Close()
	})
}

func withCloseDeadline(closePage func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), pageCloseTimeout)
	defer cancel()
	return closePage(ctx)
}

// envelope is what every widget script resolves to.
type envelope struct {
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value"`
	Error string          `json:"error"`
}

// call evaluates js with args, awaits its promise, and decodes the envelope
// value into out (skipped when out is nil).
func (p *rodPage) call(ctx context.Context, out interface{}, js string, args ...interface{}) error {
	res, err := p.page.Context(ctx).Evaluate(rod.Eval(js, args...).ByPromise())
	if err != nil {
		return err
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("reading result: %w", err)
	}
	return decodeEnvelope(raw, out)
}

// decodeEnvelope unpacks a script result.
func decodeEnvelope(raw []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	if !env.OK {
		if env.Error == "" {
			env.Error = "widget call failed"
		}
		return errors.New(env.Error)
	}
	if out == nil || len(env.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		return fmt.Errorf("decoding value: %w", err)
	}
	return nil
}
