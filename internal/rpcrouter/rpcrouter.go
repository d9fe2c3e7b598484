// Package rpcrouter dispatches the five inbound RPC routes from spec.md
// §6 by exact route name, and also registers each route as a path in a
// go-chi/chi/v5 trie that Resolvable matches against (SPEC_FULL.md §4.P).
// This package only owns route -> handler dispatch and the JSON envelope,
// not a transport: config.RPCCfg.HandlerType is validated at startup, but
// cmd/server always wires the in-process dummy transport.
package rpcrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"ecommerce-core/internal/apperror"
)

// Route names from spec.md §6.
const (
	RouteOrderReservedReplicaPayment = "rpc.order.order_reserved_replica_payment"
	RouteOrderReservedReplicaRefund  = "rpc.order.order_reserved_replica_refund"
	RouteOrderReservedReplicaInv     = "rpc.order.order_reserved_replica_inventory"
	RouteOrderReservedUpdatePayment  = "rpc.order.order_reserved_update_payment"
	RouteOrderDiscardUnpaid          = "rpc.order.order_discard_unpaid"
)

// Reply is the uniform JSON envelope for every RPC route: on success Data
// carries the handler's payload, on failure Error carries {code, detail}
// per spec.md §6.
type Reply struct {
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the client-facing error shape: `{code: int, detail:
// string?}` with codes from the apperror taxonomy.
type ErrorBody struct {
	Code   int    `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// Handler processes one RPC call's raw JSON body and returns a payload to
// serialise into Reply.Data, or an error to collapse into Reply.Error.
type Handler func(ctx context.Context, body json.RawMessage) (any, error)

// Router maps route names to Handlers. Dispatch looks a handler up by its
// exact route name; Register also adds the route to chi's trie router
// (chi.Mux.Post), with the route name standing in for the path, and
// Resolvable matches against that trie.
type Router struct {
	mux      *chi.Mux
	mu       sync.RWMutex
	handlers map[string]Handler
}

func New() *Router {
	return &Router{mux: chi.NewRouter(), handlers: make(map[string]Handler)}
}

// Register binds route to handler and adds it to chi's trie so
// NoRouteApiServerCfg-class misconfiguration (duplicate or malformed
// routes) surfaces the same way the teacher's chi.Mux would for HTTP
// routes.
func (r *Router) Register(route string, h Handler) {
	path := "/" + strings.ReplaceAll(route, ".", "/")
	r.mux.Post(path, func(w http.ResponseWriter, req *http.Request) {})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[route] = h
}

// Resolvable reports whether route matches a registered chi path, i.e.
// whether the route table declares it at all (independent of whether a
// Handler func has been wired, which Dispatch also checks).
func (r *Router) Resolvable(route string) bool {
	path := "/" + strings.ReplaceAll(route, ".", "/")
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rctx := chi.NewRouteContext()
	return r.mux.Match(rctx, req.Method, path)
}

// Dispatch looks up route and invokes its handler with body, producing the
// uniform Reply envelope. Unknown routes fail InvalidRouteConfig.
func (r *Router) Dispatch(ctx context.Context, route string, body json.RawMessage) Reply {
	r.mu.RLock()
	h, ok := r.handlers[route]
	r.mu.RUnlock()
	if !ok {
		return errorReply(apperror.New(apperror.InvalidRouteConfig, "no handler registered for route: "+route))
	}
	data, err := h(ctx, body)
	if err != nil {
		return errorReply(err)
	}
	return Reply{Data: data}
}

func errorReply(err error) Reply {
	code, ok := apperror.CodeOf(err)
	if !ok {
		code = apperror.NotImplemented
	}
	return Reply{Error: &ErrorBody{Code: int(code), Detail: err.Error()}}
}
