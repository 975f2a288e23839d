package model

import (
	"encoding/json"
	"testing"
)

func TestCart_PreservesRawDocument(t *testing.T) {
	doc := `{"cartId":"abc","items":[{"quantity":1,"product":{"id":7}}],"productsQuantity":1}`

	var cart Cart
	if err := json.Unmarshal([]byte(doc), &cart); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Errorf("len(Items) = %d, want 1", len(cart.Items))
	}
	if cart.IsEmpty() {
		t.Error("IsEmpty() = true, want false")
	}

	out, err := json.Marshal(&cart)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if string(out) != doc {
		t.Errorf("Marshal() = %s, want %s", out, doc)
	}
}

func TestCart_IsEmpty(t *testing.T) {
	tests := []struct {
		name string
		cart *Cart
		want bool
	}{
		{"nil cart", nil, true},
		{"no items", NewCart(), true},
		{"one item", NewCart(json.RawMessage(`{}`)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cart.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCart_MarshalBuilt(t *testing.T) {
	out, err := json.Marshal(NewCart())
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if string(out) != `{"items":[]}` {
		t.Errorf("Marshal() = %s", out)
	}
}

func TestProduct_ID(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int64
	}{
		{"number", `{"id":123,"name":"Tee"}`, 123},
		{"string", `{"id":"456"}`, 456},
		{"missing", `{"name":"x"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Product
			if err := json.Unmarshal([]byte(tt.doc), &p); err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			if p.ID != tt.want {
				t.Errorf("ID = %d, want %d", p.ID, tt.want)
			}
			out, _ := json.Marshal(p)
			if string(out) != tt.doc {
				t.Errorf("Marshal() = %s, want %s", out, tt.doc)
			}
		})
	}
}

func TestAddResult_JSONShape(t *testing.T) {
	res := AddResult{
		Success:      true,
		AddedProduct: &Product{ID: 9},
		UpdatedCart:  NewCart(),
	}
	out, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	want := `{"success":true,"addedProduct":{"id":9},"updatedCart":{"items":[]}}`
	if string(out) != want {
		t.Errorf("Marshal() = %s, want %s", out, want)
	}
}
