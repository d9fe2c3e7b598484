package stock

import (
	"testing"
	"time"
)

func TestTryReserveAllOrNothing(t *testing.T) {
	now := time.Now()
	id := Identity{StoreID: 17, ProductType: 1, ProductID: 100}

	t.Run("succeeds within available stock", func(t *testing.T) {
		s := &Set{Levels: []Level{
			{Identity: id, Total: 10, Expiry: now.Add(time.Hour)},
		}}
		errs := s.TryReserve([]LineRequest{{Identity: id, Qty: 5}}, now)
		if errs != nil {
			t.Fatalf("expected no errors, got %v", errs)
		}
		if s.Levels[0].Booked != 5 {
			t.Fatalf("expected booked=5, got %d", s.Levels[0].Booked)
		}
	})

	t.Run("fails and leaves state untouched when one line is short", func(t *testing.T) {
		s := &Set{Levels: []Level{
			{Identity: id, Total: 10, Expiry: now.Add(time.Hour)},
		}}
		otherID := Identity{StoreID: 38, ProductType: 1, ProductID: 200}
		s.Levels = append(s.Levels, Level{Identity: otherID, Total: 2, Expiry: now.Add(time.Hour)})

		errs := s.TryReserve([]LineRequest{
			{Identity: id, Qty: 5},
			{Identity: otherID, Qty: 9999},
		}, now)
		if len(errs) != 1 || errs[0].Kind != NotEnoughStock {
			t.Fatalf("expected one NotEnoughStock error, got %v", errs)
		}
		// all-or-nothing: the satisfiable line must not have been debited.
		if s.Levels[0].Booked != 0 {
			t.Fatalf("expected no partial debit, got booked=%d", s.Levels[0].Booked)
		}
	})

	t.Run("skips expired buckets and picks ascending expiry", func(t *testing.T) {
		expired := Level{Identity: id, Total: 100, Expiry: now.Add(-time.Hour)}
		near := Level{Identity: id, Total: 3, Expiry: now.Add(time.Hour)}
		far := Level{Identity: id, Total: 10, Expiry: now.Add(2 * time.Hour)}
		s := &Set{Levels: []Level{far, expired, near}}

		errs := s.TryReserve([]LineRequest{{Identity: id, Qty: 5}}, now)
		if errs != nil {
			t.Fatalf("expected no errors, got %v", errs)
		}
		var gotNear, gotFar, gotExpired Level
		for _, l := range s.Levels {
			switch l.Expiry {
			case near.Expiry:
				gotNear = l
			case far.Expiry:
				gotFar = l
			case expired.Expiry:
				gotExpired = l
			}
		}
		if gotNear.Booked != 3 {
			t.Fatalf("expected near bucket fully booked (3), got %d", gotNear.Booked)
		}
		if gotFar.Booked != 2 {
			t.Fatalf("expected far bucket to cover remainder (2), got %d", gotFar.Booked)
		}
		if gotExpired.Booked != 0 {
			t.Fatalf("expired bucket must never be reserved, got %d", gotExpired.Booked)
		}
	})

	t.Run("unknown product yields NotExist", func(t *testing.T) {
		s := &Set{}
		errs := s.TryReserve([]LineRequest{{Identity: id, Qty: 1}}, now)
		if len(errs) != 1 || errs[0].Kind != NotExist {
			t.Fatalf("expected NotExist, got %v", errs)
		}
	})
}

func TestTryReturnBoundedByBooked(t *testing.T) {
	now := time.Now()
	id := Identity{StoreID: 17, ProductType: 1, ProductID: 100}
	s := &Set{Levels: []Level{{Identity: id, Total: 10, Booked: 4, Expiry: now.Add(time.Hour)}}}

	errs := s.TryReturn([]ReturnRequest{{Identity: id, Qty: 6}})
	if errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if s.Levels[0].Booked != 0 {
		t.Fatalf("expected booked bounded at 0, got %d", s.Levels[0].Booked)
	}
	if s.Levels[0].Cancelled != 4 {
		t.Fatalf("expected cancelled capped to previously booked qty (4), got %d", s.Levels[0].Cancelled)
	}
}
