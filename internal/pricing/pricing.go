// Package pricing implements the per-store product price list, grounded on
// original_source/services/order/src/model/product_price.rs
// (ProductPriceModel / ProductPriceModelSet).
package pricing

import (
	"encoding/json"
	"fmt"
	"time"

	"ecommerce-core/internal/apperror"
)

// ProductType mirrors spec.md §6 "compact enum {Item=1, Package=2}".
type ProductType uint8

const (
	ProductTypeUnknown ProductType = 0
	ProductTypeItem    ProductType = 1
	ProductTypePackage ProductType = 2
)

func ParseProductType(v uint8) (ProductType, error) {
	switch ProductType(v) {
	case ProductTypeItem, ProductTypePackage:
		return ProductType(v), nil
	default:
		return ProductTypeUnknown, apperror.New(apperror.InvalidInput,
			fmt.Sprintf("product-type: accepted values are 1 (item) or 2 (package), got %d", v))
	}
}

// AttrValue is a tagged variant over {int, string, bool}, matching
// ProdAttrValueDto in the original.
type AttrValue struct {
	Int  *int64
	Str  *string
	Bool *bool
}

func (v AttrValue) key() string {
	switch {
	case v.Int != nil:
		return fmt.Sprintf("%d", *v.Int)
	case v.Str != nil:
		return *v.Str
	case v.Bool != nil:
		return fmt.Sprintf("%t", *v.Bool)
	default:
		return ""
	}
}

// AttrCharge is one extra-charge entry keyed by (label_id, value).
type AttrCharge struct {
	LabelID string
	Value   AttrValue
	Price   int32
}

// MapKey reproduces ProdAttriPriceModel::map_key: "{label_id}-{value}".
func MapKey(labelID string, v AttrValue) string {
	return labelID + "-" + v.key()
}

// Entry is a single product's price record (ProductPriceModel).
type Entry struct {
	ProductID      uint64
	BasePrice      uint32
	StartAfter     time.Time
	EndBefore      time.Time
	AttrPricing    map[string]int32 // nil if no attribute pricing
	AttrLastUpdate time.Time
	isCreate       bool
}

// NewEntry validates start_after < end_before and builds the attribute map
// from scratch, rejecting duplicate (label_id, value) pairs — InvalidInput,
// mirroring ProdAttriPriceModel::try_from.
func NewEntry(productID uint64, basePrice uint32, startAfter, endBefore time.Time, charges []AttrCharge, lastUpdate time.Time) (Entry, error) {
	if !startAfter.Before(endBefore) {
		return Entry{}, apperror.New(apperror.InvalidInput, "start_after must be before end_before")
	}
	var attrMap map[string]int32
	if len(charges) > 0 {
		attrMap = make(map[string]int32, len(charges))
		for _, c := range charges {
			k := MapKey(c.LabelID, c.Value)
			if _, dup := attrMap[k]; dup {
				return Entry{}, apperror.New(apperror.InvalidInput, fmt.Sprintf("prod-price-dup-attrval: %s", k))
			}
			attrMap[k] = c.Price
		}
	}
	return Entry{
		ProductID:      productID,
		BasePrice:      basePrice,
		StartAfter:     startAfter,
		EndBefore:      endBefore,
		AttrPricing:    attrMap,
		AttrLastUpdate: lastUpdate,
		isCreate:       true,
	}, nil
}

// SerializeAttrMap / DeserializeAttrMap persist the attribute map as JSON
// text; corruption on load is DataCorruption (spec.md §4.B).
func SerializeAttrMap(m map[string]int32) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", apperror.Wrap(apperror.DataCorruption, "prod-attr-price-serialize-map", err)
	}
	return string(b), nil
}

func DeserializeAttrMap(raw string) (map[string]int32, error) {
	var m map[string]int32
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, apperror.Wrap(apperror.DataCorruption, "prod-attr-price-deserialize-map", err)
	}
	return m, nil
}

func (e *Entry) update(basePrice uint32, startAfter, endBefore time.Time, charges []AttrCharge, lastUpdate time.Time) error {
	var attrMap map[string]int32
	if len(charges) > 0 {
		attrMap = make(map[string]int32, len(charges))
		for _, c := range charges {
			k := MapKey(c.LabelID, c.Value)
			if _, dup := attrMap[k]; dup {
				return apperror.New(apperror.InvalidInput, fmt.Sprintf("prod-price-dup-attrval: %s", k))
			}
			attrMap[k] = c.Price
		}
	}
	e.BasePrice = basePrice
	e.StartAfter = startAfter
	e.EndBefore = endBefore
	e.AttrPricing = attrMap
	e.AttrLastUpdate = lastUpdate
	return nil
}

// Edit is the request shape for one update/create entry (ProductPriceEditDto).
type Edit struct {
	ProductID  uint64
	BasePrice  uint32
	StartAfter time.Time
	EndBefore  time.Time
	Charges    []AttrCharge
	LastUpdate time.Time
}

// Set is a store's whole price list (ProductPriceModelSet).
type Set struct {
	StoreID  uint32
	Currency string
	Items    []Entry
}

// Update applies `updating` against existing (non-create) entries and
// appends `creating` entries only if every update succeeds, matching
// ProductPriceModelSet::update exactly, including the scenario-5 rejection
// detail string "updating-data-to-nonexist-obj".
func (s *Set) Update(updating, creating []Edit, newCurrency string) error {
	// Mirrors ProductPriceModelSet::update: an updating entry only counts as
	// applied if a matching existing (non-create) entry was found AND its
	// update succeeds; any shortfall collapses to the same InvalidInput
	// detail regardless of which of the two reasons caused it. The Rust
	// original gets this atomicity for free because update() consumes
	// `mut self` by value and the mutated copy is dropped on error; a
	// pointer-receiver port has to do the dry-run/commit split itself, so
	// resolve every edit against a *copy* first and only write back into
	// s.Items once every edit in `updating` has resolved.
	resolved := make([]struct {
		index int
		entry Entry
	}, 0, len(updating))
	for _, d := range updating {
		idx := -1
		for i := range s.Items {
			if s.Items[i].ProductID == d.ProductID && !s.Items[i].isCreate {
				idx = i
				break
			}
		}
		if idx == -1 {
			continue
		}
		candidate := s.Items[idx]
		if err := candidate.update(d.BasePrice, d.StartAfter, d.EndBefore, d.Charges, d.LastUpdate); err != nil {
			continue
		}
		resolved = append(resolved, struct {
			index int
			entry Entry
		}{idx, candidate})
	}
	if len(resolved) != len(updating) {
		return apperror.New(apperror.InvalidInput, "updating-data-to-nonexist-obj")
	}
	for _, r := range resolved {
		s.Items[r.index] = r.entry
	}

	newItems := make([]Entry, 0, len(creating))
	for _, d := range creating {
		e, err := NewEntry(d.ProductID, d.BasePrice, d.StartAfter, d.EndBefore, d.Charges, d.LastUpdate)
		if err != nil {
			return err
		}
		newItems = append(newItems, e)
	}

	s.Items = append(s.Items, newItems...)
	s.Currency = newCurrency
	return nil
}

// FindProduct looks up a product by seller+id, matching
// ProductPriceModelSet::find_product (the seller must own this store).
func (s *Set) FindProduct(sellerID uint32, productID uint64) *Entry {
	if s.StoreID != sellerID {
		return nil
	}
	for i := range s.Items {
		if s.Items[i].ProductID == productID {
			return &s.Items[i]
		}
	}
	return nil
}
