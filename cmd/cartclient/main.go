// cartclient is a CLI tool for exercising the Ecwid storefront proxy.
// Each command performs a single cart operation, making it composable for scripts.
//
// Commands:
//
//	cartclient add -proxy URL -id ID [-qty N] [-opt name=value]...
//	cartclient cart -proxy URL
//	cartclient remove -proxy URL -index N
//	cartclient clear -proxy URL
//	cartclient checkout -proxy URL
//
// Examples:
//
//	cartclient add -id 123456 -qty 2 -opt Size=M
//	N=$(cartclient cart -q)
//	cartclient remove -index 0 -v
//	cartclient checkout
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"ecwid-proxy/internal/timing"
)

// Browser-backed calls take seconds; leave room for a cold launch.
var client = &http.Client{Timeout: 90 * time.Second}

// Global flags (apply to all commands)
var (
	proxyURL string
	quiet    bool
	noColor  bool
	verbose  bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "add":
		runAdd(args)
	case "cart":
		runCart(args)
	case "remove":
		runRemove(args)
	case "clear":
		runClear(args)
	case "checkout":
		runCheckout(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cartclient - Ecwid storefront proxy test tool

Usage:
  cartclient <command> [options]

Commands:
  add       Add a product to the cart
  cart      Show the current cart
  remove    Remove the cart item at an index
  clear     Empty the cart
  checkout  Open checkout (fails on an empty cart)

Examples:
  # Add two medium shirts
  cartclient add -id 123456 -qty 2 -opt Size=M

  # Item count only, for scripts
  N=$(cartclient cart -q)

  # Remove the first item and show stage timings
  cartclient remove -index 0 -v

Run 'cartclient <command> -h' for command-specific options.
`)
}

// newFlagSet returns a flag set carrying the global flags.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&proxyURL, "proxy", envOr("CART_PROXY_URL", "http://localhost:3000"), "Proxy base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output the essential value")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response and stage timings")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartclient %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
	proxyURL = strings.TrimSuffix(proxyURL, "/")
}

// =============================================================================
// ADD
// =============================================================================

func runAdd(args []string) {
	fs := newFlagSet("add", "add -id ID [options]")
	var productID int64
	var quantity int
	options := optionsFlag{}
	fs.Int64Var(&productID, "id", 0, "Product ID (required)")
	fs.IntVar(&quantity, "qty", 1, "Quantity")
	fs.Var(options, "opt", "Product option name=value (repeatable)")
	parseFlags(fs, args)

	if productID == 0 {
		fs.Usage()
		os.Exit(1)
	}

	reqBody := map[string]interface{}{
		"id":       productID,
		"quantity": quantity,
		"options":  options,
	}

	resp, err := doRequest("POST", "/cart/product/add", reqBody)
	if err != nil {
		fatal("Failed to add product: %v", err)
	}

	result, _ := resp["result"].(map[string]interface{})
	cart, _ := result["updatedCart"].(map[string]interface{})
	if quiet {
		fmt.Println(itemCount(cart))
		return
	}
	printSuccess("Product %d added", productID)
	printCartSummary(cart)
}

// =============================================================================
// CART
// =============================================================================

func runCart(args []string) {
	fs := newFlagSet("cart", "cart [options]")
	parseFlags(fs, args)

	resp, err := doRequest("GET", "/cart", nil)
	if err != nil {
		fatal("Failed to get cart: %v", err)
	}

	cart, _ := resp["cart"].(map[string]interface{})
	if quiet {
		fmt.Println(itemCount(cart))
		return
	}
	printCartSummary(cart)
}

// =============================================================================
// REMOVE
// =============================================================================

func runRemove(args []string) {
	fs := newFlagSet("remove", "remove -index N [options]")
	index := fs.Int("index", -1, "Zero-based cart item index (required)")
	parseFlags(fs, args)

	if *index < 0 {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("POST", "/cart/product/remove", map[string]interface{}{"index": *index})
	if err != nil {
		fatal("Failed to remove product: %v", err)
	}

	result, _ := resp["result"].(map[string]interface{})
	cart, _ := result["updatedCart"].(map[string]interface{})
	if quiet {
		fmt.Println(itemCount(cart))
		return
	}
	printSuccess("%v", result["message"])
	printCartSummary(cart)
}

// =============================================================================
// CLEAR / CHECKOUT
// =============================================================================

func runClear(args []string) {
	fs := newFlagSet("clear", "clear [options]")
	parseFlags(fs, args)

	resp, err := doRequest("POST", "/cart/clear", nil)
	if err != nil {
		fatal("Failed to clear cart: %v", err)
	}
	result, _ := resp["result"].(map[string]interface{})
	printSuccess("%v", result["message"])
}

func runCheckout(args []string) {
	fs := newFlagSet("checkout", "checkout [options]")
	parseFlags(fs, args)

	resp, err := doRequest("POST", "/checkout", nil)
	if err != nil {
		fatal("Checkout failed: %v", err)
	}
	result, _ := resp["result"].(map[string]interface{})
	printSuccess("%v", result["message"])
}

// =============================================================================
// HTTP
// =============================================================================

// errProxy is returned when the proxy answers {success:false}.
var errProxy = errors.New("proxy error")

func doRequest(method, path string, body interface{}) (map[string]interface{}, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, proxyURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if !quiet {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if !quiet {
		printResponse(resp.StatusCode, respBody, duration)
	}
	if verbose {
		printTimings(resp.Header.Get(timing.HeaderName))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if ok, _ := result["success"].(bool); !ok || resp.StatusCode >= 400 {
		msg, _ := result["error"].(string)
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", errProxy, msg)
	}

	return result, nil
}

// optionsFlag collects repeated -opt name=value flags.
type optionsFlag map[string]string

func (o optionsFlag) String() string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + o[k]
	}
	return strings.Join(parts, ",")
}

func (o optionsFlag) Set(v string) error {
	name, val, ok := strings.Cut(v, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("option must be name=value, got %q", v)
	}
	o[name] = val
	return nil
}

// itemCount returns the number of items in a cart snapshot.
func itemCount(cart map[string]interface{}) int {
	items, _ := cart["items"].([]interface{})
	return len(items)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}

	output := pretty.String()
	if !verbose {
		lines := strings.Split(output, "\n")
		if len(lines) > 30 {
			lines = append(lines[:25], fmt.Sprintf("%s  %s(%d more lines, use -v for full output)%s", prefix, colorGray, len(lines)-25, colorReset))
			output = strings.Join(lines, "\n")
		}
	}
	fmt.Println(output)
}

// printTimings renders the Storefront-Timing header.
func printTimings(header string) {
	if header == "" {
		return
	}
	entries, err := timing.Parse(header)
	if err != nil {
		fmt.Printf("%s⚠ unreadable %s header: %v%s\n", colorYellow, timing.HeaderName, err, colorReset)
		return
	}
	fmt.Printf("\n%s⏱ TIMINGS%s\n", colorGray, colorReset)
	for _, e := range entries {
		fmt.Printf("  %-9s %v\n", e.Phase, e.Duration)
	}
}

func printCartSummary(cart map[string]interface{}) {
	if quiet || cart == nil {
		return
	}
	items, _ := cart["items"].([]interface{})
	fmt.Printf("  Items: %s%d%s\n", colorCyan, len(items), colorReset)
	for i, raw := range items {
		item, _ := raw.(map[string]interface{})
		product, _ := item["product"].(map[string]interface{})
		name, _ := product["name"].(string)
		if name == "" {
			name = fmt.Sprintf("product %v", product["id"])
		}
		fmt.Printf("  %s[%d]%s %s × %v\n", colorGray, i, colorReset, name, item["quantity"])
	}
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
