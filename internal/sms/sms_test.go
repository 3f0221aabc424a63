package sms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSend(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"msg-1","success":true}`))
	}))
	defer srv.Close()

	c := New(Config{Name: "primary", BaseURL: srv.URL + "/", Token: "tok", Sender: "SOKO"}, discardLogger())
	id, err := c.Send(context.Background(), "+919876543210", "code 123456")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "msg-1" {
		t.Errorf("id = %q", id)
	}
	if got.To != "+919876543210" || got.From != "SOKO" || got.Body != "code 123456" {
		t.Errorf("request = %+v", got)
	}
}

func TestSend_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		rejected bool
	}{
		{"server error", http.StatusBadGateway, `{"error":"down"}`, false},
		{"unsuccessful reply", http.StatusOK, `{"id":"x","success":false}`, true},
		{"missing id", http.StatusOK, `{}`, true},
		{"garbage", http.StatusOK, `not json`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(Config{Name: "p", BaseURL: srv.URL}, discardLogger())
			_, err := c.Send(context.Background(), "+15550000000", "hi")
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrRejected) != tt.rejected {
				t.Errorf("rejected = %v, want %v (%v)", errors.Is(err, ErrRejected), tt.rejected, err)
			}
			if !strings.Contains(err.Error(), "p") {
				t.Errorf("error should name the provider: %v", err)
			}
		})
	}
}
