package adapter

import (
	"context"

	"ecwid-proxy/internal/model"
)

// Mock implements Storefront for testing.
// Each method can be configured via function fields.
type Mock struct {
	AddProductFunc    func(ctx context.Context, action model.AddProduct) (*model.AddResult, error)
	GetCartFunc       func(ctx context.Context) (*model.Cart, error)
	RemoveProductFunc func(ctx context.Context, action model.RemoveProduct) (*model.RemoveResult, error)
	ClearCartFunc     func(ctx context.Context) (*model.ClearResult, error)
	CheckoutFunc      func(ctx context.Context) (*model.CheckoutResult, error)
}

// AddProduct calls the configured AddProductFunc or returns an error.
func (m *Mock) AddProduct(ctx context.Context, action model.AddProduct) (*model.AddResult, error) {
	if m.AddProductFunc != nil {
		return m.AddProductFunc(ctx, action)
	}
	return nil, model.NewExecutionError(nil)
}

// GetCart calls the configured GetCartFunc or returns an empty cart.
func (m *Mock) GetCart(ctx context.Context) (*model.Cart, error) {
	if m.GetCartFunc != nil {
		return m.GetCartFunc(ctx)
	}
	return model.NewCart(), nil
}

// RemoveProduct calls the configured RemoveProductFunc or returns an error.
func (m *Mock) RemoveProduct(ctx context.Context, action model.RemoveProduct) (*model.RemoveResult, error) {
	if m.RemoveProductFunc != nil {
		return m.RemoveProductFunc(ctx, action)
	}
	return nil, model.NewExecutionError(nil)
}

// ClearCart calls the configured ClearCartFunc or reports a cleared cart.
func (m *Mock) ClearCart(ctx context.Context) (*model.ClearResult, error) {
	if m.ClearCartFunc != nil {
		return m.ClearCartFunc(ctx)
	}
	return &model.ClearResult{Success: true, Message: model.MsgCartCleared}, nil
}

// Checkout calls the configured CheckoutFunc or rejects with an empty cart.
func (m *Mock) Checkout(ctx context.Context) (*model.CheckoutResult, error) {
	if m.CheckoutFunc != nil {
		return m.CheckoutFunc(ctx)
	}
	return nil, model.NewRejectedError(model.MsgCartEmpty)
}

// Verify Mock implements Storefront interface at compile time.
var _ Storefront = (*Mock)(nil)
