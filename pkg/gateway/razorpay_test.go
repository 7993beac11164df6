package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func newTestRazorpay(t *testing.T, handler http.HandlerFunc) *Razorpay {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewRazorpay(config.GatewayConfig{KeyID: "rzp_test", KeySecret: "shh", BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("new razorpay: %v", err)
	}
	return client
}

func TestRazorpayCreateOrderSendsMinorUnits(t *testing.T) {
	client := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test" || pass != "shh" {
			t.Errorf("missing basic auth")
		}
		var body razorpayOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Amount != 149900 || body.Currency != "INR" {
			t.Errorf("unexpected body %+v", body)
		}
		_ = json.NewEncoder(w).Encode(razorpayOrderResponse{ID: "order_123", Amount: body.Amount, Currency: "INR", Status: "created"})
	})

	order, err := client.CreateOrder(context.Background(), 1499, "inr", "rcpt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != "order_123" || order.Amount != 1499 {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestRazorpayServerErrorIsTransient(t *testing.T) {
	client := newTestRazorpay(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CreateOrder(context.Background(), 100, "INR", "")
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency code, got %v", err)
	}
}

func TestRazorpayClientErrorIsNotTransient(t *testing.T) {
	client := newTestRazorpay(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	})

	_, err := client.CreateOrder(context.Background(), 100, "INR", "")
	if err == nil || IsTransient(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestRazorpayVerifySignature(t *testing.T) {
	client, err := NewRazorpay(config.GatewayConfig{KeyID: "k", KeySecret: "secret"}, nil)
	if err != nil {
		t.Fatalf("new razorpay: %v", err)
	}
	good := Verification{OrderID: "order_1", PaymentID: "pay_1", Signature: Sign("secret", "order_1", "pay_1")}
	ok, err := client.Verify(context.Background(), good)
	if err != nil || !ok {
		t.Fatalf("expected valid signature, ok=%v err=%v", ok, err)
	}

	tampered := good
	tampered.PaymentID = "pay_2"
	if ok, _ := client.Verify(context.Background(), tampered); ok {
		t.Fatalf("tampered payment id must fail")
	}
	if ok, _ := client.Verify(context.Background(), Verification{OrderID: "order_1"}); ok {
		t.Fatalf("missing fields must fail")
	}
}

func TestNewRazorpayRequiresCredentials(t *testing.T) {
	if _, err := NewRazorpay(config.GatewayConfig{KeyID: "k"}, nil); err == nil {
		t.Fatalf("expected error without secret")
	}
}
