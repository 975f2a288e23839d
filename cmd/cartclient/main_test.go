package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOptionsFlag(t *testing.T) {
	o := optionsFlag{}
	for _, v := range []string{"Size=M", "Color=Dark blue", "Note=a=b"} {
		if err := o.Set(v); err != nil {
			t.Fatalf("Set(%q) error: %v", v, err)
		}
	}

	if o["Note"] != "a=b" {
		t.Errorf("Note = %q, want a=b", o["Note"])
	}
	if got := o.String(); got != "Color=Dark blue,Note=a=b,Size=M" {
		t.Errorf("String() = %q", got)
	}

	for _, bad := range []string{"Size", "=M", " =M"} {
		if err := o.Set(bad); err == nil {
			t.Errorf("Set(%q) should fail", bad)
		}
	}
}

func TestDoRequest(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cart/product/add":
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.Header().Set("Storefront-Timing", "navigate=12, dispatch=3")
			w.Write([]byte(`{"success":true,"result":{"success":true,"updatedCart":{"items":[{},{}]}}}`))
		case "/checkout":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success":false,"error":"Cart is empty"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		}
	}))
	defer srv.Close()

	proxyURL, quiet = srv.URL, true

	t.Run("success", func(t *testing.T) {
		resp, err := doRequest("POST", "/cart/product/add", map[string]interface{}{"id": 7, "options": optionsFlag{"Size": "M"}})
		if err != nil {
			t.Fatalf("doRequest() error: %v", err)
		}
		if gotBody["id"] != float64(7) {
			t.Errorf("sent id = %v, want 7", gotBody["id"])
		}
		result, _ := resp["result"].(map[string]interface{})
		cart, _ := result["updatedCart"].(map[string]interface{})
		if n := itemCount(cart); n != 2 {
			t.Errorf("itemCount = %d, want 2", n)
		}
	})

	t.Run("proxy failure", func(t *testing.T) {
		_, err := doRequest("POST", "/checkout", nil)
		if !errors.Is(err, errProxy) {
			t.Fatalf("error = %v, want errProxy", err)
		}
		if !strings.Contains(err.Error(), "Cart is empty") {
			t.Errorf("error = %v, want proxy message", err)
		}
	})

	t.Run("non-JSON failure", func(t *testing.T) {
		_, err := doRequest("GET", "/elsewhere", nil)
		if err == nil || !strings.Contains(err.Error(), "HTTP 502") {
			t.Errorf("error = %v, want HTTP 502", err)
		}
	})
}
