package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"

	"ecommerce-core/internal/api"
	"ecommerce-core/internal/auth"
	"ecommerce-core/internal/chargerepo"
	"ecommerce-core/internal/config"
	"ecommerce-core/internal/confidential"
	"ecommerce-core/internal/logging"
	"ecommerce-core/internal/order"
	"ecommerce-core/internal/orderrepo"
	"ecommerce-core/internal/processor"
	"ecommerce-core/internal/refundrepo"
	"ecommerce-core/internal/rpcrouter"
	"ecommerce-core/internal/synclock"
	"ecommerce-core/internal/usecase"
)

func main() {
	// Load env (dotenv-style: only if not already set), kept from the
	// teacher's main.go for local/dev runs that set SERVICE_BASE_PATH etc.
	// via a .env file instead of a real process supervisor.
	loadEnvFile(".env")

	paths := config.ResolvePaths()
	cfg, err := config.ParseFromFile(paths.ConfigFilePath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	secrets, err := confidential.LoadFromFile(paths.SecretFilePath)
	if err != nil {
		log.Fatalf("confidential: %v", err)
	}
	jwtKey, err := secrets.JWTSigningKey()
	if err != nil {
		log.Fatalf("derive jwt signing key: %v", err)
	}

	logger := logging.New("payment", "main")
	keystore := auth.New(jwtKey)
	locks := synclock.New()

	orderRepo, err := buildOrderRepo(cfg)
	if err != nil {
		log.Fatalf("order repo: %v", err)
	}
	chargeRepo, err := buildChargeRepo(cfg)
	if err != nil {
		log.Fatalf("charge repo: %v", err)
	}
	refundRepo := refundrepo.NewInMemRepo()

	orderClient := usecase.NewDummyOrderClient(orderRepo)
	stripeLike := processor.NewStripeLike(
		envOrDefault("STRIPE_BASE_URL", "https://api.stripe.com/v1"),
		envOrDefault("STRIPE_API_KEY", ""),
		&http.Client{Timeout: 10 * time.Second},
		10*time.Second,
	)

	createCharge := &usecase.CreateChargeUseCase{
		ChargeRepo: chargeRepo, OrderRepo: orderRepo, OrderClient: orderClient,
		Processor: stripeLike, Locks: locks, Log: logger,
	}
	refreshStatus := &usecase.RefreshStatusUseCase{
		ChargeRepo: chargeRepo, OrderClient: orderClient, Processor: stripeLike, Log: logger,
	}
	finalizeRefund := &usecase.FinalizeRefundUseCase{
		RefundRepo: refundRepo, ChargeRepo: chargeRepo, Processor: stripeLike, Log: logger,
	}
	onboardMerchant := &usecase.OnboardMerchantUseCase{Processor: stripeLike, Log: logger}
	refreshOnboard := &usecase.RefreshOnboardUseCase{Processor: stripeLike, Log: logger}
	report := &usecase.MerchantReportUseCase{ChargeRepo: chargeRepo, Log: logger}
	discardUnpaid := &usecase.DiscardUnpaidUseCase{OrderRepo: orderRepo, Log: logger}

	rpc := rpcrouter.New()
	registerOrderRPCRoutes(rpc, orderClient, discardUnpaid)

	srv := &api.Server{
		Auth: keystore, RPC: rpc,
		CreateCharge: createCharge, RefreshStatus: refreshStatus, FinalizeRefund: finalizeRefund,
		OnboardMerchant: onboardMerchant, RefreshOnboard: refreshOnboard, Report: report,
		Log: logger,
	}

	addr := cfg.Listeners[0]
	logger.Info("listening on " + addr)
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// migrationsDir holds the SQL schema golang-migrate applies to whichever
// Postgres-backed repos are configured (mirrors the teacher's hardcoded
// store.Migrate("migrations") call site).
const migrationsDir = "migrations"

func buildOrderRepo(cfg *config.AppConfig) (orderrepo.Repository, error) {
	ds, ok := cfg.DataStores["order"]
	if !ok || ds.Kind == config.DataStoreInMemory {
		return orderrepo.NewInMemRepo(), nil
	}
	repo, err := orderrepo.OpenPostgres(ds.DSN, ds.MaxConns, time.Duration(ds.IdleTimeoutSecs)*time.Second)
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(migrationsDir); err != nil {
		return nil, err
	}
	return repo, nil
}

func buildChargeRepo(cfg *config.AppConfig) (chargerepo.Repository, error) {
	ds, ok := cfg.DataStores["charge"]
	if !ok || ds.Kind == config.DataStoreInMemory {
		return chargerepo.NewInMemRepo(), nil
	}
	db, err := sql.Open("postgres", ds.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(ds.MaxConns)
	db.SetConnMaxIdleTime(time.Duration(ds.IdleTimeoutSecs) * time.Second)
	repo := chargerepo.NewPostgresRepo(db)
	if err := repo.Migrate(migrationsDir); err != nil {
		return nil, err
	}
	return repo, nil
}

// registerOrderRPCRoutes wires the five inbound order-service RPC routes
// (spec.md §6) to the in-process DummyOrderClient / discard-unpaid job,
// standing in for config.RPCHandlerDummy: no broker round-trip, same call
// semantics a real AMQP consumer would expose.
func registerOrderRPCRoutes(rpc *rpcrouter.Router, orderClient usecase.OrderServiceClient, discard *usecase.DiscardUnpaidUseCase) {
	replicaHandler := func(ctx context.Context, body json.RawMessage) (any, error) {
		var req struct {
			OrderID string `json:"order_id"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		return orderClient.FetchOrderReplica(ctx, req.OrderID)
	}
	rpc.Register(rpcrouter.RouteOrderReservedReplicaPayment, replicaHandler)
	rpc.Register(rpcrouter.RouteOrderReservedReplicaRefund, replicaHandler)
	rpc.Register(rpcrouter.RouteOrderReservedReplicaInv, replicaHandler)

	rpc.Register(rpcrouter.RouteOrderReservedUpdatePayment, func(ctx context.Context, body json.RawMessage) (any, error) {
		var req struct {
			OrderID string `json:"order_id"`
			Updates []struct {
				SellerID    uint32 `json:"seller_id"`
				ProductType uint8  `json:"product_type"`
				ProductID   uint64 `json:"product_id"`
				QtyPaid     uint32 `json:"qty_paid"`
			} `json:"updates"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		updates := make([]order.LinePaidUpdate, 0, len(req.Updates))
		for _, u := range req.Updates {
			updates = append(updates, order.LinePaidUpdate{
				SellerID: u.SellerID, ProductType: u.ProductType, ProductID: u.ProductID,
				QtyPaid: u.QtyPaid, PaidTimestamp: now,
			})
		}
		return orderClient.PushPaidLines(ctx, req.OrderID, updates)
	})

	rpc.Register(rpcrouter.RouteOrderDiscardUnpaid, func(ctx context.Context, body json.RawMessage) (any, error) {
		if err := discard.Execute(ctx, time.Now().UTC()); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil
	})
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range splitLines(string(data)) {
		line = trimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		parts := splitFirst(line, '=')
		if len(parts) != 2 {
			continue
		}
		key := trimSpace(parts[0])
		val := trimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			line := s[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			lines = append(lines, line)
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func trimSpace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	j := len(s)
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	return s[i:j]
}

func splitFirst(s string, sep byte) []string {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return []string{s[:i], s[i+1:]}
		}
	}
	return []string{s}
}
