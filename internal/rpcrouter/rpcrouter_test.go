package rpcrouter

import (
	"context"
	"encoding/json"
	"testing"

	"ecommerce-core/internal/apperror"
)

func TestDispatchKnownRoute(t *testing.T) {
	r := New()
	r.Register(RouteOrderDiscardUnpaid, func(ctx context.Context, body json.RawMessage) (any, error) {
		return map[string]string{"ok": "true"}, nil
	})

	reply := r.Dispatch(context.Background(), RouteOrderDiscardUnpaid, json.RawMessage(`{}`))
	if reply.Error != nil {
		t.Fatalf("unexpected error reply: %+v", reply.Error)
	}
	if !r.Resolvable(RouteOrderDiscardUnpaid) {
		t.Fatalf("expected route to resolve against the chi trie")
	}
}

func TestDispatchUnknownRoute(t *testing.T) {
	r := New()
	reply := r.Dispatch(context.Background(), "rpc.order.does_not_exist", json.RawMessage(`{}`))
	if reply.Error == nil {
		t.Fatalf("expected error reply for unregistered route")
	}
	if reply.Error.Code != int(apperror.InvalidRouteConfig) {
		t.Fatalf("expected InvalidRouteConfig code, got %d", reply.Error.Code)
	}
}

func TestDispatchHandlerError(t *testing.T) {
	r := New()
	r.Register(RouteOrderReservedReplicaPayment, func(ctx context.Context, body json.RawMessage) (any, error) {
		return nil, apperror.New(apperror.OrderOwnerMismatch, "owner mismatch")
	})
	reply := r.Dispatch(context.Background(), RouteOrderReservedReplicaPayment, json.RawMessage(`{}`))
	if reply.Error == nil || reply.Error.Code != int(apperror.OrderOwnerMismatch) {
		t.Fatalf("expected OrderOwnerMismatch error reply, got %+v", reply.Error)
	}
}
