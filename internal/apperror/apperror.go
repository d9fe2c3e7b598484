// Package apperror defines the shared error taxonomy used across the order
// and payment services. Codes are kinds, not Go types: every failure in the
// domain and repository layers carries one of these codes plus an opaque
// detail string for logs.
package apperror

import "fmt"

// Code enumerates the error kinds from the error-handling design. Client
// replies collapse to this set; detail strings never cross that boundary.
type Code int

const (
	_ Code = iota

	// Input
	InvalidJSONFormat
	InvalidInput
	InvalidRouteConfig
	ExceedingMaxLimit
	EmptyInputData

	// Authorization
	OrderOwnerMismatch
	PermissionDenied

	// Resource
	MissingDataStore
	MissingMerchant
	DataTableNotExist
	NoRouteAPIServerCfg
	AcquireLockFailure

	// Integrity
	DataCorruption
	PayMethodUnsupport

	// Domain
	QtyInsufficient
	AmountInsufficient
	MissingReqLine
	MissingCurrency
	AmountOverflow

	// External
	ThirdParty
	LoadOrderInternalError
	LoadOrderConflict
	LoadOrderByteCorruption

	// Not implemented / fatal
	NotImplemented
	IOError
)

var codeNames = map[Code]string{
	InvalidJSONFormat:       "invalid-json-format",
	InvalidInput:            "invalid-input",
	InvalidRouteConfig:      "invalid-route-config",
	ExceedingMaxLimit:       "exceeding-max-limit",
	EmptyInputData:          "empty-input-data",
	OrderOwnerMismatch:      "order-owner-mismatch",
	PermissionDenied:        "permission-denied",
	MissingDataStore:        "missing-data-store",
	MissingMerchant:         "missing-merchant",
	DataTableNotExist:       "data-table-not-exist",
	NoRouteAPIServerCfg:     "no-route-api-server-cfg",
	AcquireLockFailure:      "acquire-lock-failure",
	DataCorruption:          "data-corruption",
	PayMethodUnsupport:      "pay-method-unsupport",
	QtyInsufficient:         "qty-insufficient",
	AmountInsufficient:      "amount-insufficient",
	MissingReqLine:          "missing-req-line",
	MissingCurrency:         "missing-currency",
	AmountOverflow:          "amount-overflow",
	ThirdParty:              "third-party",
	LoadOrderInternalError:  "load-order-internal-error",
	LoadOrderConflict:       "load-order-conflict",
	LoadOrderByteCorruption: "load-order-byte-corruption",
	NotImplemented:          "not-implemented",
	IOError:                 "io-error",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// AppError is the carrier type for every domain/repository failure. Detail
// is opaque to clients and exists for log localisation only.
type AppError struct {
	Code   Code
	Detail string
	cause  error
}

func New(code Code, detail string) *AppError {
	return &AppError{Code: code, Detail: detail}
}

func Wrap(code Code, detail string, cause error) *AppError {
	return &AppError{Code: code, Detail: detail, cause: cause}
}

func (e *AppError) Error() string {
	if e.Detail == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *AppError) Unwrap() error { return e.cause }

// Is lets errors.Is(err, apperror.New(SomeCode, "")) match purely on code,
// following the original's convention of treating AppErrorCode as the
// comparable identity of an error.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the Code from err if it is (or wraps) an *AppError.
func CodeOf(err error) (Code, bool) {
	for err != nil {
		if ae, ok := err.(*AppError); ok {
			return ae.Code, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return 0, false
}
