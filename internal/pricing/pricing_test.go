package pricing

import (
	"testing"
	"time"

	"ecommerce-core/internal/apperror"
)

func mustEntry(t *testing.T, productID uint64, price uint32) Entry {
	t.Helper()
	e, err := NewEntry(productID, price, time.Now().Add(-time.Hour), time.Now().Add(time.Hour), nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error building entry: %v", err)
	}
	// The set under test already holds this entry, so it is not a create
	// entry of the current round.
	e.isCreate = false
	return e
}

func TestSetUpdateRejectsUnknownProduct(t *testing.T) {
	// scenario 5: set has product 1622; update targets 1622 (present) and
	// 9999 (absent). Expect InvalidInput/"updating-data-to-nonexist-obj",
	// no entries mutated.
	s := &Set{StoreID: 1, Currency: "USD", Items: []Entry{mustEntry(t, 1622, 500)}}
	before := s.Items[0]

	err := s.Update([]Edit{
		{ProductID: 1622, BasePrice: 600, StartAfter: before.StartAfter, EndBefore: before.EndBefore, LastUpdate: time.Now()},
		{ProductID: 9999, BasePrice: 700, StartAfter: before.StartAfter, EndBefore: before.EndBefore, LastUpdate: time.Now()},
	}, nil, "USD")

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	ae, ok := err.(*apperror.AppError)
	if !ok {
		t.Fatalf("expected *apperror.AppError, got %T", err)
	}
	if ae.Code != apperror.InvalidInput || ae.Detail != "updating-data-to-nonexist-obj" {
		t.Fatalf("unexpected error: %+v", ae)
	}
	if got := s.Items[0]; got.BasePrice != before.BasePrice || !got.StartAfter.Equal(before.StartAfter) ||
		!got.EndBefore.Equal(before.EndBefore) || len(got.AttrPricing) != len(before.AttrPricing) {
		t.Fatalf("expected no mutation on reject path, before=%+v got=%+v", before, got)
	}
}

func TestSetUpdateAppliesAndCreates(t *testing.T) {
	s := &Set{StoreID: 1, Currency: "USD", Items: []Entry{mustEntry(t, 1622, 500)}}
	now := time.Now()

	err := s.Update(
		[]Edit{{ProductID: 1622, BasePrice: 999, StartAfter: now.Add(-time.Hour), EndBefore: now.Add(time.Hour), LastUpdate: now}},
		[]Edit{{ProductID: 2001, BasePrice: 100, StartAfter: now.Add(-time.Hour), EndBefore: now.Add(time.Hour), LastUpdate: now}},
		"EUR",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(s.Items))
	}
	if s.Currency != "EUR" {
		t.Fatalf("expected currency EUR, got %s", s.Currency)
	}
	if s.Items[0].BasePrice != 999 {
		t.Fatalf("expected updated price 999, got %d", s.Items[0].BasePrice)
	}
}

func TestNewEntryRejectsDuplicateAttr(t *testing.T) {
	one := int64(1)
	_, err := NewEntry(1, 500, time.Now(), time.Now().Add(time.Hour), []AttrCharge{
		{LabelID: "color", Value: AttrValue{Int: &one}, Price: 10},
		{LabelID: "color", Value: AttrValue{Int: &one}, Price: 20},
	}, time.Now())
	if err == nil {
		t.Fatal("expected duplicate attribute error")
	}
}

func TestParseProductType(t *testing.T) {
	if _, err := ParseProductType(3); err == nil {
		t.Fatal("expected error for unknown product type")
	}
	pt, err := ParseProductType(1)
	if err != nil || pt != ProductTypeItem {
		t.Fatalf("expected ProductTypeItem, got %v err=%v", pt, err)
	}
}
