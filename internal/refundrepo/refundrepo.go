// Package refundrepo stores refund-requested order lines and answers
// window-scoped fetches, following the same scan-by-time-range idiom
// used for the scheduled discard job (internal/orderrepo).
package refundrepo

import (
	"context"
	"sync"
	"time"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/refund"
)

// Entry is one seeded refund-requested line, tagged with its owning
// order so a window fetch can span multiple orders.
type Entry struct {
	OrderID string
	Line    refund.OLineRefund
}

// Repository is the refund-request read/write side: seeded and
// window-fetched for reporting (component I read path), and loaded/mutated
// per order for refund-completion resolution (spec.md §4.I / §4.J use via
// the finalize-refund use case).
type Repository interface {
	Seed(ctx context.Context, entries []Entry) error
	FetchByIssueTimeWindow(ctx context.Context, from, to time.Time) ([]Entry, error)

	// FetchOrder loads every refund-requested line for one order as an
	// refund.OrderRefund model.
	FetchOrder(ctx context.Context, orderID string) (refund.OrderRefund, error)

	// ApplyResolution persists the lines of updated (already mutated via
	// refund.OrderRefund.Apply) back over the matching seeded entries.
	ApplyResolution(ctx context.Context, orderID string, updated refund.OrderRefund) error
}

type InMemRepo struct {
	mu      sync.Mutex
	entries []Entry
}

func NewInMemRepo() *InMemRepo {
	return &InMemRepo{}
}

func (r *InMemRepo) Seed(ctx context.Context, entries []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

// FetchByIssueTimeWindow returns every seeded entry whose TimeRequested
// falls in [from, to], across all orders, order not guaranteed.
func (r *InMemRepo) FetchByIssueTimeWindow(ctx context.Context, from, to time.Time) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		t := e.Line.TimeRequested
		if (t.Equal(from) || t.After(from)) && (t.Equal(to) || t.Before(to)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *InMemRepo) FetchOrder(ctx context.Context, orderID string) (refund.OrderRefund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var lines []refund.OLineRefund
	for _, e := range r.entries {
		if e.OrderID == orderID {
			lines = append(lines, e.Line)
		}
	}
	if len(lines) == 0 {
		return refund.OrderRefund{}, apperror.New(apperror.DataTableNotExist, "no refund-requested lines for order: "+orderID)
	}
	return refund.OrderRefund{OrderID: orderID, Lines: lines}, nil
}

func (r *InMemRepo) ApplyResolution(ctx context.Context, orderID string, updated refund.OrderRefund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].OrderID != orderID {
			continue
		}
		for _, u := range updated.Lines {
			if r.entries[i].Line.PID == u.PID && r.entries[i].Line.TimeRequested.Equal(u.TimeRequested) {
				r.entries[i].Line = u
			}
		}
	}
	return nil
}
