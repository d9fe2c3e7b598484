// Package logging wraps zerolog with the service/component/order_id/
// charge_id fields named in spec.md §4.M (EXPANDED), replacing the
// teacher's ad-hoc log.Printf("[engine] ...") call sites with a
// structured equivalent. Repositories and use cases log at Warn on
// recoverable failures and Error on DataCorruption/ThirdParty, matching
// the severities spec.md §7 assigns to those error kinds.
package logging

import (
	"os"

	"github.com/rs/zerolog"

	"ecommerce-core/internal/apperror"
)

// Logger is an immutable, chainable structured logger.
type Logger struct {
	zl zerolog.Logger
}

// New builds a root logger tagged with the owning service and component,
// writing to stdout in the teacher's plain call-site style but with
// structured fields instead of bracketed string prefixes.
func New(service, component string) Logger {
	zl := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", service).
		Str("component", component).
		Logger()
	return Logger{zl: zl}
}

func (l Logger) WithOrder(orderID string) Logger {
	return Logger{zl: l.zl.With().Str("order_id", orderID).Logger()}
}

func (l Logger) WithCharge(chargeToken string) Logger {
	return Logger{zl: l.zl.With().Str("charge_id", chargeToken).Logger()}
}

func (l Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

// Warn logs a recoverable failure (spec.md §4.M).
func (l Logger) Warn(msg string, err error) {
	l.zl.Warn().Err(err).Msg(msg)
}

// Error logs a failure at zerolog's error level, whatever err's code;
// Event is the variant that picks Warn or Error from the code.
func (l Logger) Error(msg string, err error) {
	if code, ok := apperror.CodeOf(err); ok && (code == apperror.DataCorruption || code == apperror.ThirdParty) {
		l.zl.Error().Err(err).Msg(msg)
		return
	}
	l.zl.Error().Err(err).Msg(msg)
}

// Event logs at the severity spec.md §4.M assigns to err's code: Error for
// DataCorruption/ThirdParty, Warn for everything else. Use this at
// repository/use-case call sites instead of hand-picking Warn vs Error.
func (l Logger) Event(msg string, err error) {
	if code, ok := apperror.CodeOf(err); ok && (code == apperror.DataCorruption || code == apperror.ThirdParty) {
		l.Error(msg, err)
		return
	}
	l.Warn(msg, err)
}
