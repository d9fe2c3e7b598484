// Package api exposes the payment service's client-facing HTTP surface
// (create-charge, refresh-status, finalize-refund, onboarding, reporting)
// plus the inbound order-service RPC routes from spec.md §6, reusing the
// teacher's chi.Mux + middleware.Logger/Recoverer/Timeout stack and
// Bearer-JWT auth-middleware shape from the original internal/api/server.go,
// generalised from a user-session token to the internal/auth caller-claim
// keystore.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/auth"
	"ecommerce-core/internal/logging"
	"ecommerce-core/internal/rpcrouter"
	"ecommerce-core/internal/usecase"
)

// Server wires the use-case layer to HTTP, matching the teacher's thin
// Server{collaborators...}.Router() shape.
type Server struct {
	Auth           *auth.Keystore
	RPC            *rpcrouter.Router
	CreateCharge   *usecase.CreateChargeUseCase
	RefreshStatus  *usecase.RefreshStatusUseCase
	FinalizeRefund *usecase.FinalizeRefundUseCase
	OnboardMerchant *usecase.OnboardMerchantUseCase
	RefreshOnboard *usecase.RefreshOnboardUseCase
	Report         *usecase.MerchantReportUseCase
	Log            logging.Logger
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json200(w, map[string]string{"status": "ok"})
	})

	// Inbound order-service RPC surface (spec.md §6): one POST per route,
	// dispatched through rpcrouter.Router keyed by the dotted route name.
	r.Post("/rpc/*", s.dispatchRPC)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/api/charges", s.createCharge)
		r.Post("/api/charges/{token}/refresh", s.refreshStatus)
		r.Post("/api/refunds/finalize", s.finalizeRefund)
		r.Post("/api/merchants/onboard", s.onboardMerchant)
		r.Post("/api/merchants/{accountID}/onboard/refresh", s.refreshOnboard)
		r.Get("/api/merchants/{merchantID}/report", s.merchantReport)
	})

	return r
}

func (s *Server) dispatchRPC(w http.ResponseWriter, r *http.Request) {
	route := "rpc." + strings.ReplaceAll(strings.Trim(chi.URLParam(r, "*"), "/"), "/", ".")
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		body = json.RawMessage(`{}`)
	}
	reply := s.RPC.Dispatch(r.Context(), route, body)
	json200(w, reply)
}

func (s *Server) createCharge(w http.ResponseWriter, r *http.Request) {
	var req usecase.CreateChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, apperror.InvalidJSONFormat, "invalid json")
		return
	}
	req.UserID = callerUserID(r)
	res, err := s.CreateCharge.Execute(r.Context(), req)
	if err != nil {
		jsonAppErr(w, err)
		return
	}
	json200(w, res)
}

func (s *Server) refreshStatus(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	res, err := s.RefreshStatus.Execute(r.Context(), token)
	if err != nil {
		jsonAppErr(w, err)
		return
	}
	json200(w, res)
}

func (s *Server) finalizeRefund(w http.ResponseWriter, r *http.Request) {
	var req usecase.FinalizeRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, apperror.InvalidJSONFormat, "invalid json")
		return
	}
	res, err := s.FinalizeRefund.Execute(r.Context(), req)
	if err != nil {
		jsonAppErr(w, err)
		return
	}
	json200(w, res)
}

func (s *Server) onboardMerchant(w http.ResponseWriter, r *http.Request) {
	var req usecase.OnboardMerchantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, apperror.InvalidJSONFormat, "invalid json")
		return
	}
	res, err := s.OnboardMerchant.Execute(r.Context(), req)
	if err != nil {
		jsonAppErr(w, err)
		return
	}
	json200(w, res)
}

func (s *Server) refreshOnboard(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	state, complete, err := s.RefreshOnboard.Execute(r.Context(), accountID)
	if err != nil {
		jsonAppErr(w, err)
		return
	}
	json200(w, map[string]any{"capability": state, "onboarding_complete": complete})
}

func (s *Server) merchantReport(w http.ResponseWriter, r *http.Request) {
	merchantID, err := strconv.ParseUint(chi.URLParam(r, "merchantID"), 10, 32)
	if err != nil {
		jsonErr(w, 400, apperror.InvalidInput, "invalid merchant id")
		return
	}
	from, to, err := parseReportWindow(r)
	if err != nil {
		jsonErr(w, 400, apperror.InvalidInput, "invalid from/to query params")
		return
	}
	res, err := s.Report.Execute(r.Context(), usecase.MerchantReportRequest{
		MerchantID: uint32(merchantID), From: from, To: to,
	})
	if err != nil {
		jsonAppErr(w, err)
		return
	}
	json200(w, res)
}

func parseReportWindow(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	to = time.Now().UTC()
	from = to.Add(-30 * 24 * time.Hour)
	if v := q.Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			return
		}
	}
	return
}

// ── Middleware ────────────────────────────────────────

type ctxKey string

const ctxKeyCallerID ctxKey = "caller_id"

func newCtxWithCaller(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, ctxKeyCallerID, callerID)
}

// callerUserID reads the numeric user id asserted by the auth keystore's
// caller_id claim (the gateway signs it in after its own end-user auth;
// this service only ever sees the already-authenticated numeric id).
func callerUserID(r *http.Request) uint32 {
	v, _ := r.Context().Value(ctxKeyCallerID).(string)
	id, _ := strconv.ParseUint(v, 10, 32)
	return uint32(id)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := r.Header.Get("Authorization")
		if !strings.HasPrefix(hdr, "Bearer ") {
			jsonErr(w, 401, apperror.PermissionDenied, "missing token")
			return
		}
		callerID, err := s.Auth.Verify(strings.TrimPrefix(hdr, "Bearer "))
		if err != nil {
			jsonErr(w, 401, apperror.PermissionDenied, "invalid token")
			return
		}
		ctx := newCtxWithCaller(r.Context(), callerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ── helpers ───────────────────────────────────────────

func json200(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonErr(w http.ResponseWriter, httpStatus int, code apperror.Code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(rpcrouter.Reply{Error: &rpcrouter.ErrorBody{Code: int(code), Detail: msg}})
}

func jsonAppErr(w http.ResponseWriter, err error) {
	code, _ := apperror.CodeOf(err)
	jsonErr(w, httpStatusFor(code), code, err.Error())
}

func httpStatusFor(code apperror.Code) int {
	switch code {
	case apperror.InvalidJSONFormat, apperror.InvalidInput, apperror.ExceedingMaxLimit, apperror.EmptyInputData,
		apperror.QtyInsufficient, apperror.AmountInsufficient, apperror.MissingReqLine:
		return 400
	case apperror.OrderOwnerMismatch, apperror.PermissionDenied:
		return 403
	case apperror.DataTableNotExist, apperror.MissingMerchant:
		return 404
	case apperror.LoadOrderConflict:
		return 409
	default:
		return 500
	}
}
