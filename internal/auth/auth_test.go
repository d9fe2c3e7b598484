package auth

import (
	"testing"
	"time"
)

func TestSignVerifyRoundtrip(t *testing.T) {
	k := New([]byte("test-secret-at-least-32-bytes!!!"))
	tok, err := k.Sign("order-service", time.Minute)
	if err != nil {
		t.Fatalf("unexpected sign error: %v", err)
	}
	callerID, err := k.Verify(tok)
	if err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	if callerID != "order-service" {
		t.Fatalf("expected caller_id order-service, got %s", callerID)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	k := New([]byte("test-secret-at-least-32-bytes!!!"))
	tok, err := k.Sign("order-service", -time.Minute)
	if err != nil {
		t.Fatalf("unexpected sign error: %v", err)
	}
	if _, err := k.Verify(tok); err == nil {
		t.Fatalf("expected expired token to fail verification")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	k1 := New([]byte("secret-one-at-least-32-bytes!!!!"))
	k2 := New([]byte("secret-two-at-least-32-bytes!!!!"))
	tok, err := k1.Sign("payment-service", time.Minute)
	if err != nil {
		t.Fatalf("unexpected sign error: %v", err)
	}
	if _, err := k2.Verify(tok); err == nil {
		t.Fatalf("expected verification with wrong secret to fail")
	}
}
