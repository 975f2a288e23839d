// MCP transport handler for the storefront proxy using the official MCP Go SDK.
// Exposes the five cart actions as MCP tools.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"ecwid-proxy/internal/model"
)

// === MCP Tool Input Types ===

// AddProductInput is the input schema for the add_product tool.
type AddProductInput struct {
	ID       int64          `json:"id" jsonschema:"Ecwid product ID"`
	Quantity int            `json:"quantity,omitempty" jsonschema:"units to add (default 1)"`
	Options  map[string]any `json:"options,omitempty" jsonschema:"product options keyed by option name"`
}

// RemoveProductInput is the input schema for the remove_product tool.
type RemoveProductInput struct {
	Index int `json:"index" jsonschema:"zero-based position of the item in the cart"`
}

// EmptyInput is the input schema for tools that take no arguments.
type EmptyInput struct{}

// NewMCPServer creates an MCP server with cart tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "ecwid-proxy",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Ecwid storefront cart. " +
				"Use these tools to add and remove products, inspect the cart, and open checkout.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_product",
		Description: "Add a product to the cart. Returns the added product and the updated cart.",
	}, h.mcpAddProduct)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the current cart.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_product",
		Description: "Remove the cart item at the given index. Returns the updated cart.",
	}, h.mcpRemoveProduct)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cart",
		Description: "Remove every item from the cart.",
	}, h.mcpClearCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "checkout",
		Description: "Open the storefront checkout. Fails when the cart is empty.",
	}, h.mcpCheckout)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpAddProduct(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddProductInput,
) (*mcp.CallToolResult, map[string]any, error) {
	action := model.AddProduct{
		ID:       input.ID,
		Quantity: input.Quantity,
		Options:  input.Options,
	}
	if action.Quantity == 0 {
		action.Quantity = 1
	}
	if action.Options == nil {
		action.Options = map[string]any{}
	}

	result, err := h.store.AddProduct(ctx, action)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpResult(result)
}

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, map[string]any, error) {
	cart, err := h.store.GetCart(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpResult(cart)
}

func (h *Handler) mcpRemoveProduct(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RemoveProductInput,
) (*mcp.CallToolResult, map[string]any, error) {
	result, err := h.store.RemoveProduct(ctx, model.RemoveProduct{Index: input.Index})
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpResult(result)
}

func (h *Handler) mcpClearCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, map[string]any, error) {
	result, err := h.store.ClearCart(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpResult(result)
}

func (h *Handler) mcpCheckout(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input EmptyInput,
) (*mcp.CallToolResult, map[string]any, error) {
	result, err := h.store.Checkout(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return h.mcpResult(result)
}

// mcpResult converts a typed result into structured tool output.
// Cart and product payloads pass through as the widget produced them.
func (h *Handler) mcpResult(v any) (*mcp.CallToolResult, map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, out, nil
}

// mcpError converts storefront errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
