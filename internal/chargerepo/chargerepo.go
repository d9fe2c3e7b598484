// Package chargerepo persists charge meta and lines and reloads them by
// (owner, create_time), grounded on
// original_source/services/payment/src/adapter/repository/mariadb/charge_converter.rs
// for the row shape, and on the teacher's internal/db/store.go for the
// write-if-state-matches optimistic-concurrency pattern
// (GetWalletForUpdate / UpsertPosition).
package chargerepo

import (
	"context"
	"sync"
	"time"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/charge"
)

// Key identifies a charge by its composite primary key.
type Key struct {
	OwnerID    uint32
	CreateTime time.Time // truncated to the second, per spec.md §3
}

// Repository is the charge repository contract (component G).
type Repository interface {
	Create(ctx context.Context, c charge.Charge) error
	Fetch(ctx context.Context, key Key) (charge.Charge, error)

	// AdvanceState performs optimistic-concurrency write-if-state-matches:
	// it only persists the transition if the stored state still equals
	// `expectCurrent`; otherwise it fails DataCorruption (spec.md §5).
	AdvanceState(ctx context.Context, key Key, expectCurrent charge.PayInState, next charge.PayInState, at time.Time) error

	// ApplyRefund adds to a charge line's AmountRefunded (resolves the
	// amount_refunded persisted-column open question).
	ApplyRefund(ctx context.Context, key Key, sellerID uint32, productType uint8, productID uint64, delta charge.Line) error

	// FetchByTimeRange returns every charge created in [start, end], used
	// by the per-merchant reporting use case (component Q).
	FetchByTimeRange(ctx context.Context, start, end time.Time) ([]charge.Charge, error)
}

type record struct {
	mu sync.Mutex
	c  charge.Charge
}

// InMemRepo is the in-memory Repository used by unit tests and the dummy
// RPC transport.
type InMemRepo struct {
	mu    sync.Mutex
	items map[Key]*record
}

func NewInMemRepo() *InMemRepo {
	return &InMemRepo{items: make(map[Key]*record)}
}

func keyOf(c charge.Charge) Key {
	return Key{OwnerID: c.Meta.OwnerID, CreateTime: c.Meta.CreateTime.Truncate(time.Second)}
}

func (r *InMemRepo) Create(ctx context.Context, c charge.Charge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := keyOf(c)
	if _, exists := r.items[k]; exists {
		return apperror.New(apperror.InvalidInput, "charge already exists")
	}
	cp := c
	cp.Lines = append([]charge.Line(nil), c.Lines...)
	r.items[k] = &record{c: cp}
	return nil
}

func (r *InMemRepo) Fetch(ctx context.Context, key Key) (charge.Charge, error) {
	r.mu.Lock()
	rec, ok := r.items[key]
	r.mu.Unlock()
	if !ok {
		return charge.Charge{}, apperror.New(apperror.DataTableNotExist, "charge not found")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if err := rec.c.Meta.Timestamps.Validate(rec.c.Meta.State); err != nil {
		return charge.Charge{}, err
	}
	out := rec.c
	out.Lines = append([]charge.Line(nil), rec.c.Lines...)
	return out, nil
}

func (r *InMemRepo) AdvanceState(ctx context.Context, key Key, expectCurrent, next charge.PayInState, at time.Time) error {
	r.mu.Lock()
	rec, ok := r.items[key]
	r.mu.Unlock()
	if !ok {
		return apperror.New(apperror.DataTableNotExist, "charge not found")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.c.Meta.State != expectCurrent {
		return apperror.New(apperror.DataCorruption, "charge state changed concurrently")
	}
	if err := rec.c.Meta.Timestamps.Advance(rec.c.Meta.State, next, at); err != nil {
		return err
	}
	rec.c.Meta.State = next
	return nil
}

func (r *InMemRepo) ApplyRefund(ctx context.Context, key Key, sellerID uint32, productType uint8, productID uint64, delta charge.Line) error {
	r.mu.Lock()
	rec, ok := r.items[key]
	r.mu.Unlock()
	if !ok {
		return apperror.New(apperror.DataTableNotExist, "charge not found")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := range rec.c.Lines {
		l := &rec.c.Lines[i]
		if l.SellerID == sellerID && l.ProductType == productType && l.ProductID == productID {
			l.AmountRefunded.Qty += delta.AmountRefunded.Qty
			l.AmountRefunded.Unit = delta.AmountRefunded.Unit
			l.AmountRefunded.Total = l.AmountRefunded.Total.Add(delta.AmountRefunded.Total)
			return nil
		}
	}
	return apperror.New(apperror.MissingReqLine, "charge line not found for refund apply")
}

func (r *InMemRepo) FetchByTimeRange(ctx context.Context, start, end time.Time) ([]charge.Charge, error) {
	r.mu.Lock()
	var keys []Key
	for k := range r.items {
		if !k.CreateTime.Before(start) && !k.CreateTime.After(end) {
			keys = append(keys, k)
		}
	}
	r.mu.Unlock()

	out := make([]charge.Charge, 0, len(keys))
	for _, k := range keys {
		c, err := r.Fetch(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
