package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ActionKind names a widget action. Values match the storefront's own
// vocabulary and appear in logs.
type ActionKind string

const (
	ActionAddProduct    ActionKind = "addProduct"
	ActionGetCart       ActionKind = "getCart"
	ActionRemoveProduct ActionKind = "removeProduct"
	ActionClearCart     ActionKind = "clearCart"
	ActionCheckout      ActionKind = "checkout"
)

// Action is a tagged cart request. The façade decides the variant from the
// route, so the bridge never infers intent from which fields are present.
type Action interface {
	Kind() ActionKind
	Validate() error
}

// AddProduct adds Quantity units of product ID with the given options.
type AddProduct struct {
	ID       int64
	Quantity int
	Options  map[string]any
}

// GetCart fetches the current cart snapshot.
type GetCart struct{}

// RemoveProduct removes the cart item at Index and refetches the cart.
type RemoveProduct struct {
	Index int
}

// ClearCart empties the cart.
type ClearCart struct{}

// Checkout opens the storefront checkout for a non-empty cart.
type Checkout struct{}

func (AddProduct) Kind() ActionKind    { return ActionAddProduct }
func (GetCart) Kind() ActionKind       { return ActionGetCart }
func (RemoveProduct) Kind() ActionKind { return ActionRemoveProduct }
func (ClearCart) Kind() ActionKind     { return ActionClearCart }
func (Checkout) Kind() ActionKind      { return ActionCheckout }

// Validate rejects an add without a product id, the one case where the
// storefront would have answered "Invalid action".
func (a AddProduct) Validate() error {
	if a.ID == 0 {
		return NewRejectedError(MsgInvalidAction)
	}
	if a.Quantity < 0 {
		return NewValidationError("quantity", "must not be negative")
	}
	return nil
}

func (GetCart) Validate() error { return nil }

func (a RemoveProduct) Validate() error {
	if a.Index < 0 {
		return NewValidationError("index", "must not be negative")
	}
	return nil
}

func (ClearCart) Validate() error { return nil }
func (Checkout) Validate() error  { return nil }

// === Request Bodies ===

// Int is a JSON integer that also accepts numeric strings ("12"), matching
// the loose coercion storefront clients rely on. Null and "" leave it unset.
type Int struct {
	Value int64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Int) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = Int{}
		return nil
	}

	raw := string(b)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*n = Int{}
			return nil
		}
	}

	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*n = Int{Value: v, Valid: true}
		return nil
	} else if errors.Is(err, strconv.ErrRange) {
		return NewValidationError("number", fmt.Sprintf("%s is out of range", raw))
	}

	// Exponent and integral float forms ("1e3", "3.0").
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("not a number: %q", raw)
	}
	if math.IsInf(f, 0) || f < minInt64Float || f >= maxInt64Float {
		return NewValidationError("number", fmt.Sprintf("%s is out of range", raw))
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("not an integer: %q", raw)
	}
	*n = Int{Value: int64(f), Valid: true}
	return nil
}

// Bounds of int64 as float64. The upper bound is 2^63, itself out of range.
const (
	minInt64Float = -(1 << 63)
	maxInt64Float = 1 << 63
)

// MarshalJSON implements json.Marshaler.
func (n Int) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(n.Value, 10)), nil
}

// AddProductRequest is the body of POST /cart/product/add.
type AddProductRequest struct {
	ID       Int            `json:"id"`
	Quantity Int            `json:"quantity"`
	Options  map[string]any `json:"options,omitempty"`
}

// Action converts the body into an AddProduct action.
// Quantity defaults to 1 and options to an empty map.
func (r *AddProductRequest) Action() (AddProduct, error) {
	a := AddProduct{
		ID:       r.ID.Value,
		Quantity: 1,
		Options:  r.Options,
	}
	if r.Quantity.Valid {
		if r.Quantity.Value < math.MinInt || r.Quantity.Value > math.MaxInt {
			return AddProduct{}, NewValidationError("quantity", "out of range")
		}
		a.Quantity = int(r.Quantity.Value)
	}
	if a.Options == nil {
		a.Options = map[string]any{}
	}
	return a, a.Validate()
}

// RemoveProductRequest is the body of POST /cart/product/remove.
type RemoveProductRequest struct {
	Index Int `json:"index"`
}

// Action converts the body into a RemoveProduct action.
func (r *RemoveProductRequest) Action() (RemoveProduct, error) {
	if !r.Index.Valid {
		return RemoveProduct{}, NewValidationError("index", "required")
	}
	if r.Index.Value < math.MinInt || r.Index.Value > math.MaxInt {
		return RemoveProduct{}, NewValidationError("index", "out of range")
	}
	a := RemoveProduct{Index: int(r.Index.Value)}
	return a, a.Validate()
}
