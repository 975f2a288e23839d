package model

import (
	"encoding/json"
)

// Cart is the widget's cart snapshot. The proxy does not own its shape: the
// original JSON is kept verbatim and only Items is decoded, for the
// empty-cart check at checkout.
type Cart struct {
	Items []json.RawMessage
	raw   json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler, retaining the raw document.
func (c *Cart) UnmarshalJSON(b []byte) error {
	var probe struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	c.Items = probe.Items
	c.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON implements json.Marshaler. A decoded cart is re-emitted
// unchanged; a cart built in Go emits only its items.
func (c Cart) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	items := c.Items
	if items == nil {
		items = []json.RawMessage{}
	}
	return json.Marshal(struct {
		Items []json.RawMessage `json:"items"`
	}{Items: items})
}

// IsEmpty reports whether the cart holds no items.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Product is the product object the widget hands to the add callback.
// Like Cart it passes through untouched apart from ID.
type Product struct {
	ID  int64
	raw json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler, retaining the raw document.
func (p *Product) UnmarshalJSON(b []byte) error {
	var probe struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if probe.ID != "" {
		id, err := probe.ID.Int64()
		if err != nil {
			f, ferr := probe.ID.Float64()
			if ferr != nil {
				return err
			}
			id = int64(f)
		}
		p.ID = id
	}
	p.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p Product) MarshalJSON() ([]byte, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	return json.Marshal(struct {
		ID int64 `json:"id"`
	}{ID: p.ID})
}

// === Action Results ===
// One result type per action variant. Field names follow the JSON the REST
// surface has always returned.

// AddResult is the outcome of AddProduct.
type AddResult struct {
	Success      bool     `json:"success"`
	AddedProduct *Product `json:"addedProduct"`
	UpdatedCart  *Cart    `json:"updatedCart"`
}

// RemoveResult is the outcome of RemoveProduct.
type RemoveResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	UpdatedCart *Cart  `json:"updatedCart"`
}

// ClearResult is the outcome of ClearCart.
type ClearResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CheckoutResult is the outcome of Checkout.
type CheckoutResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Result messages reported by successful actions.
const (
	MsgProductRemoved = "Product removed"
	MsgCartCleared    = "Cart cleared"
	MsgCheckoutOpened = "Checkout opened"
)

// NewCart builds a cart from already-encoded items. Used by fakes and tests.
func NewCart(items ...json.RawMessage) *Cart {
	if items == nil {
		items = []json.RawMessage{}
	}
	return &Cart{Items: items}
}
