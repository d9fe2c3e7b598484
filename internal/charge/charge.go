// Package charge implements the charge state machine, charge lines and the
// opaque third-party method state from spec.md §3/§4.E, grounded on
// original_source/services/payment/src/adapter/processor/stripe/resources.rs
// for the third-party state shape.
package charge

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"ecommerce-core/internal/apperror"
	"ecommerce-core/internal/money"
)

// PayInState is the ordered pay-in state machine: Initialized ->
// ProcessorAccepted -> ProcessorCompleted -> OrderAppSynced. Strictly
// monotone; backwards transitions are forbidden (spec.md §4.E).
type PayInState int

const (
	Initialized PayInState = iota
	ProcessorAccepted
	ProcessorCompleted
	OrderAppSynced
)

func (s PayInState) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case ProcessorAccepted:
		return "processor-accepted"
	case ProcessorCompleted:
		return "processor-completed"
	case OrderAppSynced:
		return "orderapp-synced"
	default:
		return "unknown"
	}
}

// StateTimestamps are the three nullable transition timestamps persisted
// alongside the state label. A mismatch between the label and which
// timestamps are set is DataCorruption on load.
type StateTimestamps struct {
	ProcessorAcceptedTime  *time.Time
	ProcessorCompletedTime *time.Time
	OrderAppSyncedTime     *time.Time
}

// Validate checks the label/column-nullability invariant from spec.md §4.E.
func (t StateTimestamps) Validate(state PayInState) error {
	has := func(p *time.Time) bool { return p != nil }
	switch state {
	case Initialized:
		if has(t.ProcessorAcceptedTime) || has(t.ProcessorCompletedTime) || has(t.OrderAppSyncedTime) {
			return apperror.New(apperror.DataCorruption, "initialized state must have no transition timestamps")
		}
	case ProcessorAccepted:
		if !has(t.ProcessorAcceptedTime) || has(t.ProcessorCompletedTime) || has(t.OrderAppSyncedTime) {
			return apperror.New(apperror.DataCorruption, "processor-accepted state timestamp mismatch")
		}
	case ProcessorCompleted:
		if !has(t.ProcessorAcceptedTime) || !has(t.ProcessorCompletedTime) || has(t.OrderAppSyncedTime) {
			return apperror.New(apperror.DataCorruption, "processor-completed state timestamp mismatch")
		}
	case OrderAppSynced:
		if !has(t.ProcessorAcceptedTime) || !has(t.ProcessorCompletedTime) || !has(t.OrderAppSyncedTime) {
			return apperror.New(apperror.DataCorruption, "orderapp-synced state timestamp mismatch")
		}
	default:
		return apperror.New(apperror.DataCorruption, "unknown pay-in state")
	}
	return nil
}

// Advance transitions to `next`, stamping the matching timestamp, and
// rejects any non-forward move (including staying put) with DataCorruption
// — "a concurrent advance that violates monotonicity is rejected" (spec §5).
func (t *StateTimestamps) Advance(current, next PayInState, at time.Time) error {
	if next <= current {
		return apperror.New(apperror.DataCorruption, fmt.Sprintf("illegal backward/no-op transition %s -> %s", current, next))
	}
	if next != current+1 {
		return apperror.New(apperror.DataCorruption, fmt.Sprintf("illegal skip transition %s -> %s", current, next))
	}
	switch next {
	case ProcessorAccepted:
		t.ProcessorAcceptedTime = &at
	case ProcessorCompleted:
		t.ProcessorCompletedTime = &at
	case OrderAppSynced:
		t.OrderAppSyncedTime = &at
	}
	return nil
}

// ThirdPartyLabel identifies which processor a ThirdPartyState belongs to.
type ThirdPartyLabel string

const (
	ThirdPartyStripe ThirdPartyLabel = "stripe"
)

// ThirdPartyState is the opaque tagged variant: (label, json detail).
// Unknown labels surface as PayMethodUnsupport when decoded.
type ThirdPartyState struct {
	Label  ThirdPartyLabel
	Detail json.RawMessage
}

func (s ThirdPartyState) Validate() error {
	switch s.Label {
	case ThirdPartyStripe:
		return nil
	default:
		return apperror.New(apperror.PayMethodUnsupport, string(s.Label))
	}
}

// Line mirrors an order line plus the original/refunded amount tracking
// resolving the Open Question: amount_refunded is a persisted field here.
type Line struct {
	SellerID       uint32
	ProductType    uint8
	ProductID      uint64
	AmountOriginal money.Amount
	AmountRefunded money.Amount
}

// Meta is the top-level charge row.
type Meta struct {
	OwnerID    uint32
	CreateTime time.Time
	OrderID    string
	State      PayInState
	Timestamps StateTimestamps
	Method     ThirdPartyState
}

// Charge is the full aggregate: meta, lines, currency snapshots.
type Charge struct {
	Meta       Meta
	Lines      []Line
	Currencies map[uint32]money.Snapshot
}

// Token renders the charge identity as hex(owner_id || create_time_millis),
// matching spec.md §4.F step 6 and the original's try_parse_charge_id.
func Token(ownerID uint32, createTime time.Time) string {
	millis := createTime.UnixMilli()
	buf := make([]byte, 12)
	putUint32(buf[0:4], ownerID)
	putUint64(buf[4:12], uint64(millis))
	return hex.EncodeToString(buf)
}

// ParseToken is the inverse of Token.
func ParseToken(tok string) (ownerID uint32, createTime time.Time, err error) {
	buf, decErr := hex.DecodeString(tok)
	if decErr != nil || len(buf) != 12 {
		return 0, time.Time{}, apperror.Wrap(apperror.LoadOrderByteCorruption, "charge token malformed", decErr)
	}
	ownerID = getUint32(buf[0:4])
	millis := int64(getUint64(buf[4:12]))
	return ownerID, time.UnixMilli(millis).UTC(), nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> uint(56-8*i))
	}
}
func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << uint(56-8*i)
	}
	return v
}
