// Package orderrepo defines the order repository contract and an in-memory
// implementation, grounded on
// original_source/services/order/src/repository/mod.rs (AbsOrderRepo,
// AbsOrderStockRepo and their callback-driven update contracts).
package orderrepo

import (
	"context"
	"sync"
	"time"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/order"
	"ecommerce-core/internal/stock"
)

// LinePay is the payload emitted by Create for replication to the payment
// service (OrderLinePayDto in the original).
type LinePay struct {
	SellerID     uint32
	ProductType  uint8
	ProductID    uint64
	QtyRequested uint32
}

// RangeCallback streams one matching order's lines during a reserved-time
// scan (used by the unpaid-discard job, spec.md §4.J).
type RangeCallback func(ctx context.Context, orderID string, lines []order.Line) error

// Repository is the order repository contract (AbsOrderRepo).
type Repository interface {
	Create(ctx context.Context, o order.Order) ([]LinePay, error)
	FetchAllLines(ctx context.Context, orderID string) ([]order.Line, error)
	FetchBilling(ctx context.Context, orderID string) (order.Billing, error)
	FetchShipping(ctx context.Context, orderID string) (order.Shipping, error)

	// UpdateLinesPayment loads the order's lines, invokes cb with the
	// mutable lines and the update list, persists on success, and returns
	// whatever per-line errors cb produced.
	UpdateLinesPayment(ctx context.Context, orderID string, updates []order.LinePaidUpdate, cb order.UpdateLinesPaymentFunc) ([]order.LinePayUpdateError, error)

	FetchLinesByReservedTimeRange(ctx context.Context, start, end time.Time, cb RangeCallback) error

	OwnerID(ctx context.Context, orderID string) (uint32, error)
	CreatedTime(ctx context.Context, orderID string) (time.Time, error)

	ScheduledJobLastTime(ctx context.Context) (time.Time, error)
	ScheduledJobTimeUpdate(ctx context.Context, t time.Time) error

	Stock() StockRepository
}

// StockReserveFunc mirrors AppStockRepoReserveUserFunc: mutates a loaded
// stock set in place given the incoming request, returns per-line errors.
type StockReserveFunc func(set *stock.Set, lines []stock.LineRequest, now time.Time) []stock.LineError

// StockReturnFunc mirrors AppStockRepoReturnUserFunc.
type StockReturnFunc func(set *stock.Set, reqs []stock.ReturnRequest) []stock.ReturnError

// StockRepository is AbsOrderStockRepo.
type StockRepository interface {
	Fetch(ctx context.Context, ids []stock.Identity) (stock.Set, error)
	Save(ctx context.Context, set stock.Set) error
	TryReserve(ctx context.Context, cb StockReserveFunc, lines []stock.LineRequest, now time.Time) []stock.LineError
	TryReturn(ctx context.Context, cb StockReturnFunc, reqs []stock.ReturnRequest) []stock.ReturnError
}

// ---- in-memory implementation -------------------------------------------

type orderRecord struct {
	order order.Order
}

// InMemRepo is the in-memory Repository used by unit tests and the dummy
// RPC transport (no SQL driver involved).
type InMemRepo struct {
	mu               sync.Mutex
	orders           map[string]*orderRecord
	stockRepo        *inMemStockRepo
	scheduledLast    time.Time
}

func NewInMemRepo() *InMemRepo {
	return &InMemRepo{
		orders:    make(map[string]*orderRecord),
		stockRepo: newInMemStockRepo(),
	}
}

func (r *InMemRepo) Stock() StockRepository { return r.stockRepo }

func (r *InMemRepo) Create(ctx context.Context, o order.Order) ([]LinePay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[o.ID]; exists {
		return nil, apperror.New(apperror.InvalidInput, "order already exists: "+o.ID)
	}
	cp := o
	cp.Lines = append([]order.Line(nil), o.Lines...)
	r.orders[o.ID] = &orderRecord{order: cp}

	pay := make([]LinePay, 0, len(o.Lines))
	for _, l := range o.Lines {
		pay = append(pay, LinePay{
			SellerID:     l.SellerID,
			ProductType:  l.ProductType,
			ProductID:    l.ProductID,
			QtyRequested: l.QtyRequested,
		})
	}
	return pay, nil
}

func (r *InMemRepo) get(orderID string) (*orderRecord, error) {
	rec, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.New(apperror.DataTableNotExist, "order not found: "+orderID)
	}
	return rec, nil
}

func (r *InMemRepo) FetchAllLines(ctx context.Context, orderID string) ([]order.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.get(orderID)
	if err != nil {
		return nil, err
	}
	out := make([]order.Line, len(rec.order.Lines))
	copy(out, rec.order.Lines)
	return out, nil
}

func (r *InMemRepo) FetchBilling(ctx context.Context, orderID string) (order.Billing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.get(orderID)
	if err != nil {
		return order.Billing{}, err
	}
	return rec.order.Billing, nil
}

func (r *InMemRepo) FetchShipping(ctx context.Context, orderID string) (order.Shipping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.get(orderID)
	if err != nil {
		return order.Shipping{}, err
	}
	return rec.order.Shipping, nil
}

func (r *InMemRepo) UpdateLinesPayment(ctx context.Context, orderID string, updates []order.LinePaidUpdate, cb order.UpdateLinesPaymentFunc) ([]order.LinePayUpdateError, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.get(orderID)
	if err != nil {
		return nil, err
	}
	// load-mutate-persist atomicity: mutate a scratch copy, only commit if
	// the whole call succeeds (cb itself never returns a hard error, only
	// per-line rejections, matching the original contract).
	scratch := make([]order.Line, len(rec.order.Lines))
	copy(scratch, rec.order.Lines)
	errs := cb(scratch, updates)
	rec.order.Lines = scratch
	return errs, nil
}

func (r *InMemRepo) FetchLinesByReservedTimeRange(ctx context.Context, start, end time.Time, cb RangeCallback) error {
	r.mu.Lock()
	type hit struct {
		id    string
		lines []order.Line
	}
	var hits []hit
	for id, rec := range r.orders {
		var matched []order.Line
		for _, l := range rec.order.Lines {
			if !l.ReservedUntil.Before(start) && !l.ReservedUntil.After(end) {
				matched = append(matched, l)
			}
		}
		if len(matched) > 0 {
			hits = append(hits, hit{id: id, lines: matched})
		}
	}
	r.mu.Unlock()

	for _, h := range hits {
		if err := cb(ctx, h.id, h.lines); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemRepo) OwnerID(ctx context.Context, orderID string) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.get(orderID)
	if err != nil {
		return 0, err
	}
	return rec.order.OwnerID, nil
}

func (r *InMemRepo) CreatedTime(ctx context.Context, orderID string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.get(orderID)
	if err != nil {
		return time.Time{}, err
	}
	return rec.order.CreateTime, nil
}

func (r *InMemRepo) ScheduledJobLastTime(ctx context.Context) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scheduledLast, nil
}

func (r *InMemRepo) ScheduledJobTimeUpdate(ctx context.Context, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduledLast = t
	return nil
}

// ---- in-memory stock repository -----------------------------------------

type inMemStockRepo struct {
	mu  sync.Mutex
	set stock.Set
}

func newInMemStockRepo() *inMemStockRepo {
	return &inMemStockRepo{}
}

func (s *inMemStockRepo) Fetch(ctx context.Context, ids []stock.Identity) (stock.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idset := make(map[stock.Identity]bool, len(ids))
	for _, id := range ids {
		idset[id] = true
	}
	out := stock.Set{}
	for _, lvl := range s.set.Levels {
		if idset[lvl.Identity] {
			out.Levels = append(out.Levels, lvl)
		}
	}
	return out, nil
}

func (s *inMemStockRepo) Save(ctx context.Context, set stock.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Replace any existing levels with the same identity+expiry, append the rest.
	for _, in := range set.Levels {
		replaced := false
		for i := range s.set.Levels {
			if s.set.Levels[i].Identity == in.Identity && s.set.Levels[i].Expiry.Equal(in.Expiry) {
				s.set.Levels[i] = in
				replaced = true
				break
			}
		}
		if !replaced {
			s.set.Levels = append(s.set.Levels, in)
		}
	}
	return nil
}

func (s *inMemStockRepo) TryReserve(ctx context.Context, cb StockReserveFunc, lines []stock.LineRequest, now time.Time) []stock.LineError {
	s.mu.Lock()
	defer s.mu.Unlock()
	scratch := stock.Set{Levels: append([]stock.Level(nil), s.set.Levels...)}
	errs := cb(&scratch, lines, now)
	if len(errs) == 0 {
		s.set = scratch
	}
	return errs
}

func (s *inMemStockRepo) TryReturn(ctx context.Context, cb StockReturnFunc, reqs []stock.ReturnRequest) []stock.ReturnError {
	s.mu.Lock()
	defer s.mu.Unlock()
	scratch := stock.Set{Levels: append([]stock.Level(nil), s.set.Levels...)}
	errs := cb(&scratch, reqs)
	s.set = scratch
	return errs
}
