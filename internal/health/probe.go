package health

import (
	"context"
	"errors"
	"net"

	"github.com/notifyd/notifyd/internal/kvstore"
	"github.com/notifyd/notifyd/internal/store"
)

// Probe performs one round trip to a dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// Kind classifies probe failures.
type Kind int

const (
	// KindUnexpected is any failure that is not a connectivity problem.
	KindUnexpected Kind = iota
	// KindConnectivity means the dependency could not be reached.
	KindConnectivity
)

func (k Kind) String() string {
	if k == KindConnectivity {
		return "connectivity"
	}
	return "unexpected"
}

// ProbeError tags a probe failure with its Kind.
type ProbeError struct {
	Kind Kind
	Err  error
}

func (e *ProbeError) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " failure"
	}
	return e.Err.Error()
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// ConnectivityError tags err as a connectivity failure.
func ConnectivityError(err error) error {
	return &ProbeError{Kind: KindConnectivity, Err: err}
}

// UnexpectedError tags err as an unexpected failure.
func UnexpectedError(err error) error {
	return &ProbeError{Kind: KindUnexpected, Err: err}
}

// KindOf classifies err. Explicit ProbeError tags win; untagged errors are
// connectivity failures when they come from an unreachable store, a network
// error or an expired deadline.
func KindOf(err error) Kind {
	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr.Kind
	}

	if errors.Is(err, kvstore.ErrUnavailable) ||
		errors.Is(err, store.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) {
		return KindConnectivity
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnectivity
	}
	return KindUnexpected
}
