package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestInt_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      int64
		wantValid bool
		wantErr   bool
	}{
		{"number", `42`, 42, true, false},
		{"numeric string", `"42"`, 42, true, false},
		{"padded string", `" 7 "`, 7, true, false},
		{"integral float", `3.0`, 3, true, false},
		{"null", `null`, 0, false, false},
		{"empty string", `""`, 0, false, false},
		{"fraction", `1.5`, 0, false, true},
		{"word", `"abc"`, 0, false, true},
		{"bool", `true`, 0, false, true},
		{"max int64", `9223372036854775807`, 9223372036854775807, true, false},
		{"exponent", `1e3`, 1000, true, false},
		{"above int64", `9223372036854775808`, 0, false, true},
		{"huge exponent", `1e30`, 0, false, true},
		{"huge negative string", `"-1e19"`, 0, false, true},
		{"overflowing float", `1e400`, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Int
			err := json.Unmarshal([]byte(tt.input), &n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if n.Value != tt.want || n.Valid != tt.wantValid {
				t.Errorf("Int = %+v, want {%d %v}", n, tt.want, tt.wantValid)
			}
		})
	}
}

func TestInt_OutOfRangeIsInvalidRequest(t *testing.T) {
	var req AddProductRequest
	err := json.Unmarshal([]byte(`{"id":1e30}`), &req)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Unmarshal() error = %v, want ErrInvalidRequest", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "invalid number: 1e30 is out of range" {
		t.Errorf("error = %v", err)
	}
}

func TestInt_MissingField(t *testing.T) {
	var req AddProductRequest
	if err := json.Unmarshal([]byte(`{"quantity":2}`), &req); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if req.ID.Valid {
		t.Error("ID.Valid = true for absent field")
	}
}

func TestAddProductRequest_Action(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		req := AddProductRequest{ID: Int{Value: 101, Valid: true}}
		a, err := req.Action()
		if err != nil {
			t.Fatalf("Action() error: %v", err)
		}
		if a.ID != 101 {
			t.Errorf("ID = %d, want 101", a.ID)
		}
		if a.Quantity != 1 {
			t.Errorf("Quantity = %d, want 1", a.Quantity)
		}
		if a.Options == nil {
			t.Error("Options = nil, want empty map")
		}
	})

	t.Run("explicit values", func(t *testing.T) {
		var req AddProductRequest
		body := `{"id":"555","quantity":3,"options":{"Size":"L"}}`
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("Unmarshal() error: %v", err)
		}
		a, err := req.Action()
		if err != nil {
			t.Fatalf("Action() error: %v", err)
		}
		if a.ID != 555 || a.Quantity != 3 {
			t.Errorf("Action = %+v", a)
		}
		if a.Options["Size"] != "L" {
			t.Errorf("Options[Size] = %v, want L", a.Options["Size"])
		}
	})

	t.Run("missing id is an invalid action", func(t *testing.T) {
		req := AddProductRequest{Quantity: Int{Value: 1, Valid: true}}
		_, err := req.Action()
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("Action() error = %v, want ErrRejected", err)
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message != MsgInvalidAction {
			t.Errorf("Message = %q, want %q", apiErr.Message, MsgInvalidAction)
		}
	})

	t.Run("negative quantity", func(t *testing.T) {
		req := AddProductRequest{
			ID:       Int{Value: 1, Valid: true},
			Quantity: Int{Value: -2, Valid: true},
		}
		if _, err := req.Action(); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("Action() error = %v, want ErrInvalidRequest", err)
		}
	})
}

func TestRemoveProductRequest_Action(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr error
	}{
		{"index zero", `{"index":0}`, 0, nil},
		{"string index", `{"index":"2"}`, 2, nil},
		{"missing", `{}`, 0, ErrInvalidRequest},
		{"negative", `{"index":-1}`, 0, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req RemoveProductRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			a, err := req.Action()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Action() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Action() error: %v", err)
			}
			if a.Index != tt.want {
				t.Errorf("Index = %d, want %d", a.Index, tt.want)
			}
		})
	}
}

func TestActionKinds(t *testing.T) {
	tests := []struct {
		action Action
		want   ActionKind
	}{
		{AddProduct{ID: 1}, ActionAddProduct},
		{GetCart{}, ActionGetCart},
		{RemoveProduct{}, ActionRemoveProduct},
		{ClearCart{}, ActionClearCart},
		{Checkout{}, ActionCheckout},
	}

	for _, tt := range tests {
		if got := tt.action.Kind(); got != tt.want {
			t.Errorf("Kind() = %q, want %q", got, tt.want)
		}
	}
}
