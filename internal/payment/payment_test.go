package payment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient(t *testing.T) {
	var order orderRequest
	var pay paymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "key" || secret != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/orders":
			_ = json.NewDecoder(r.Body).Decode(&order)
			_, _ = w.Write([]byte(`{"id":"order_1"}`))
		case "/payments":
			_ = json.NewDecoder(r.Body).Decode(&pay)
			_, _ = w.Write([]byte(`{"id":"pay_1","status":"authorized"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, KeyID: "key", KeySecret: "secret"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	oid, err := c.CreateOrder(ctx, 249.99, "INR", "receipt-1")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if oid != "order_1" || order.Amount != 24999 || order.Receipt != "receipt-1" {
		t.Errorf("order = %q %+v", oid, order)
	}

	pid, status, err := c.CreatePayment(ctx, 249.99, oid, "upi", "alice@bank")
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if pid != "pay_1" || status != "authorized" || pay.OrderID != "order_1" || pay.VPA != "alice@bank" {
		t.Errorf("payment = %q %q %+v", pid, status, pay)
	}
}

func TestClient_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"SERVER_ERROR","key":"rzp_live_x"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := c.CreateOrder(context.Background(), 10, "INR", "r"); err == nil {
		t.Fatal("expected error")
	}
}
