package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{MissingTenant(), http.StatusBadRequest},
		{InvalidInput("", "name"), http.StatusBadRequest},
		{Unauthorized(""), http.StatusUnauthorized},
		{Forbidden(), http.StatusForbidden},
		{NotFound("order"), http.StatusNotFound},
		{Upstream("sms gateway", errors.New("503")), http.StatusBadGateway},
		{RateLimited(), http.StatusTooManyRequests},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := Status(KindOf(tt.err)); got != tt.want {
			t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAs_WrappedError(t *testing.T) {
	err := fmt.Errorf("handler: %w", InvalidInput("missing fields", "tenantId", "pageSize"))
	e := As(err)
	if e.Kind != KindInvalidInput {
		t.Fatalf("kind = %v, want InvalidInput", e.Kind)
	}
	if e.Details() != "invalid fields: tenantId, pageSize" {
		t.Errorf("details = %q", e.Details())
	}
}

func TestAs_UnclassifiedHidesCause(t *testing.T) {
	e := As(errors.New("pq: relation \"orders\" does not exist"))
	if e.Message != "internal error" {
		t.Errorf("message = %q, want generic", e.Message)
	}
	if strings.Contains(e.Message, "orders") {
		t.Error("cause leaked into client message")
	}
}

func TestUpstreamMessageIsGeneric(t *testing.T) {
	err := Upstream("payment gateway", errors.New(`{"error":"key rzp_live_123 invalid"}`))
	e := As(err)
	if strings.Contains(e.Message, "rzp_live") {
		t.Errorf("provider payload leaked: %q", e.Message)
	}
	if !errors.Is(err, e.Err) {
		t.Error("cause should stay reachable for logging")
	}
}

func TestIs(t *testing.T) {
	if !Is(fmt.Errorf("x: %w", Forbidden()), KindForbidden) {
		t.Error("expected Forbidden")
	}
	if Is(nil, KindForbidden) {
		t.Error("nil is not Forbidden")
	}
	if Is(errors.New("x"), KindInternal) {
		t.Error("unclassified errors are not *Error")
	}
}

func TestCheck(t *testing.T) {
	var c Check
	if c.Err("bad") != nil {
		t.Fatal("empty check must not fail")
	}
	c.Require(true, "name")
	c.Require(false, "pageSize")
	c.Require(false, "sortOrder")
	err := c.Err("missing required fields")
	e := As(err)
	if e.Kind != KindInvalidInput || len(e.Fields) != 2 || e.Fields[0] != "pageSize" {
		t.Errorf("got %+v", e)
	}
}
