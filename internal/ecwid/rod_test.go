package ecwid

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher/flags"

	"ecwid-proxy/internal/model"
)

func TestResolveBin(t *testing.T) {
	tests := []struct {
		name    string
		mode    LaunchMode
		bin     string
		want    string
		wantErr bool
	}{
		{"explicit bin wins", ModeServerless, "/usr/bin/chromium", "/usr/bin/chromium", false},
		{"serverless default", ModeServerless, "", DefaultServerlessBin, false},
		{"unknown mode", LaunchMode("lambda"), "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveBin(tt.mode, tt.bin, "linux")
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveBin() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveBin() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveControlURL(t *testing.T) {
	devtools := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"Browser":"HeadlessChrome/120.0.6099.109","webSocketDebuggerUrl":"ws://%s/devtools/browser/abc"}`, r.Host)
	}))
	defer devtools.Close()
	defer http.DefaultClient.CloseIdleConnections()

	t.Run("http endpoint is resolved", func(t *testing.T) {
		got, err := resolveControlURL(devtools.URL)
		if err != nil {
			t.Fatalf("resolveControlURL() error: %v", err)
		}
		if !strings.HasPrefix(got, "ws://") || !strings.HasSuffix(got, "/devtools/browser/abc") {
			t.Errorf("resolveControlURL() = %q, want browser websocket URL", got)
		}
	})

	t.Run("websocket used as given", func(t *testing.T) {
		const ws = "ws://chrome.internal:9222/devtools/browser/xyz"
		got, err := resolveControlURL(ws)
		if err != nil {
			t.Fatalf("resolveControlURL() error: %v", err)
		}
		if got != ws {
			t.Errorf("resolveControlURL() = %q, want %q", got, ws)
		}
	})

	t.Run("errors", func(t *testing.T) {
		for _, raw := range []string{"", "ftp://chrome:9222", "http://127.0.0.1:1"} {
			if _, err := resolveControlURL(raw); err == nil {
				t.Errorf("resolveControlURL(%q) should fail", raw)
			}
		}
	})
}

// recordingClient is a CDP client that records every method called on it.
type recordingClient struct {
	mu      sync.Mutex
	methods []string
}

func (c *recordingClient) Event() <-chan *cdp.Event { return nil }

func (c *recordingClient) Call(ctx context.Context, sessionID, method string, params interface{}) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods = append(c.methods, method)
	return []byte("{}"), nil
}

type closeCounter struct{ n int }

func (c *closeCounter) Close() error {
	c.n++
	return nil
}

func TestRodBrowserClose_RemoteKeepsChromeRunning(t *testing.T) {
	client := &recordingClient{}
	conn := &closeCounter{}
	b := &rodBrowser{browser: rod.New().Client(client), conn: conn}

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if conn.n != 1 {
		t.Errorf("connection closed %d times, want 1", conn.n)
	}
	for _, m := range client.methods {
		if m == "Browser.close" {
			t.Fatal("Close() sent Browser.close to a remote browser")
		}
	}
}

func TestNewLauncherFlags(t *testing.T) {
	tests := []struct {
		name       string
		mode       LaunchMode
		serverless bool
	}{
		{"local", ModeLocal, false},
		{"serverless", ModeServerless, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := newLauncher(LaunchConfig{
				Mode:     tt.mode,
				Bin:      "/usr/bin/chromium",
				Headless: true,
				Flags:    []string{"--lang=en"},
			})
			if err != nil {
				t.Fatalf("newLauncher() error: %v", err)
			}
			if !l.Has(flags.Flag("ignore-certificate-errors")) {
				t.Error("ignore-certificate-errors not set")
			}
			if got := l.Get(flags.Flag("lang")); got != "en" {
				t.Errorf("lang = %q, want en", got)
			}
			if got := l.Has(flags.Flag("single-process")); got != tt.serverless {
				t.Errorf("single-process set = %v, want %v", got, tt.serverless)
			}
		})
	}
}

func TestWithCloseDeadline(t *testing.T) {
	start := time.Now()
	err := withCloseDeadline(func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Fatal("close context has no deadline")
		}
		if d := deadline.Sub(start); d <= 0 || d > pageCloseTimeout+time.Second {
			t.Errorf("deadline in %v, want about %v", d, pageCloseTimeout)
		}
		return ctx.Err()
	})
	if err != nil {
		t.Errorf("withCloseDeadline() error = %v", err)
	}
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		raw    string
		name   string
		val    string
		hasVal bool
	}{
		{"--no-sandbox", "no-sandbox", "", false},
		{"--window-size=1280,800", "window-size", "1280,800", true},
		{"proxy-server=http://p:8080", "proxy-server", "http://p:8080", true},
		{"  --lang=en ", "lang", "en", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			name, val, hasVal := parseFlag(tt.raw)
			if name != tt.name || val != tt.val || hasVal != tt.hasVal {
				t.Errorf("parseFlag(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.raw, name, val, hasVal, tt.name, tt.val, tt.hasVal)
			}
		})
	}
}

func TestDecodeEnvelope(t *testing.T) {
	t.Run("value", func(t *testing.T) {
		var cart model.Cart
		err := decodeEnvelope([]byte(`{"ok":true,"value":{"items":[{"quantity":2}]}}`), &cart)
		if err != nil {
			t.Fatalf("decodeEnvelope() error: %v", err)
		}
		if len(cart.Items) != 1 {
			t.Errorf("len(Items) = %d, want 1", len(cart.Items))
		}
	})

	t.Run("add callback", func(t *testing.T) {
		var res model.AddResult
		raw := `{"ok":true,"value":{"success":true,"addedProduct":{"id":42},"updatedCart":{"items":[{}]}}}`
		if err := decodeEnvelope([]byte(raw), &res); err != nil {
			t.Fatalf("decodeEnvelope() error: %v", err)
		}
		if !res.Success || res.AddedProduct == nil || res.AddedProduct.ID != 42 {
			t.Errorf("AddResult = %+v", res)
		}
	})

	t.Run("widget error", func(t *testing.T) {
		err := decodeEnvelope([]byte(`{"ok":false,"error":"Ecwid API not loaded"}`), nil)
		if err == nil || err.Error() != "Ecwid API not loaded" {
			t.Errorf("decodeEnvelope() error = %v", err)
		}
	})

	t.Run("error without reason", func(t *testing.T) {
		if err := decodeEnvelope([]byte(`{"ok":false}`), nil); err == nil {
			t.Error("decodeEnvelope() should fail")
		}
	})

	t.Run("nil out ignores value", func(t *testing.T) {
		if err := decodeEnvelope([]byte(`{"ok":true,"value":true}`), nil); err != nil {
			t.Errorf("decodeEnvelope() error: %v", err)
		}
	})

	t.Run("not json", func(t *testing.T) {
		if err := decodeEnvelope([]byte(`undefined`), nil); err == nil {
			t.Error("decodeEnvelope() should fail on invalid JSON")
		}
	})
}

func TestWidgetScripts(t *testing.T) {
	// Each script wraps exactly one widget entry point.
	tests := []struct {
		name   string
		script string
		call   string
	}{
		{"get", getCartJS, "Ecwid.Cart.get("},
		{"add", addProductJS, "Ecwid.Cart.addProduct("},
		{"remove", removeProductJS, "Ecwid.Cart.removeProduct(index"},
		{"clear", clearCartJS, "Ecwid.Cart.clear("},
		{"checkout", openCheckoutJS, "Ecwid.Checkout.open()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if strings.Count(tt.script, tt.call) != 1 {
				t.Errorf("script does not call %s exactly once:\n%s", tt.call, tt.script)
			}
			if !strings.Contains(tt.script, "new Promise") {
				t.Error("script must return a Promise")
			}
			if strings.Contains(tt.script, "reject(") {
				t.Error("script must resolve an envelope, not reject")
			}
		})
	}
}
