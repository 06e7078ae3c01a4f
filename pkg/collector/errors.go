package collector

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotConfigured marks an asset the collector has nothing to do for
	// (feature disabled, attribute left blank). It is a result, not a fault.
	ErrNotConfigured = errors.New("not configured")
	// ErrExternal marks a failure of the external data source.
	ErrExternal = errors.New("external source error")
	// ErrRateLimited marks a rejection by the external source's rate limiter.
	ErrRateLimited = errors.New("rate limited")
)

// Error is the per-asset failure a collector returns from Fetch.
type Error struct {
	Collector string
	AssetID   string
	Op        string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("collector %s: asset %s: %s: %v", e.Collector, e.AssetID, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err for the given collector, asset and operation.
func NewError(collector, assetID, op string, err error) *Error {
	return &Error{Collector: collector, AssetID: assetID, Op: op, Err: err}
}

// The predicates below also see marks set with errors.Mark, so a collector
// can keep the original cause and still classify it.

// IsNotConfigured reports whether err is a "nothing to do" result.
func IsNotConfigured(err error) bool { return errors.Is(err, ErrNotConfigured) }

func IsExternal(err error) bool { return errors.Is(err, ErrExternal) }

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
