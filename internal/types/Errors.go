/*

This file defines the error taxonomy shared by every component of the engine.
Callers use errors.Is against these sentinels to pick a retry policy.

*/

package types

import "errors"

var (
	// ErrUpstreamUnavailable marks a transient failure of an external data
	// source or protocol endpoint. Safe to retry with backoff; aggregating
	// callers degrade to partial results instead of failing outright.
	ErrUpstreamUnavailable = errors.New("upstream data source unavailable")

	// ErrInsufficientData means a required input is missing and the caller
	// must surface a stale/unknown state rather than fabricate a value.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInsufficientFunds is a caller error on execute actions. Never retried.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSlippageExceeded is a caller error on execute actions. Never retried.
	ErrSlippageExceeded = errors.New("slippage tolerance exceeded")

	// ErrUnsupported marks an unknown platform or an action the adapter
	// cannot perform. Never retried.
	ErrUnsupported = errors.New("operation not supported")

	// ErrNotFound marks an unknown strategy, position or alert ID. Distinct
	// from an empty result set.
	ErrNotFound = errors.New("not found")
)

// IsRetryable reports whether an action that failed with err may be retried
// automatically. Only upstream availability failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
