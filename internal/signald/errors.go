package signald

import "errors"

var (
	// ErrDaemonUnavailable means the daemon socket never appeared within the
	// configured connection attempts. Fatal: it indicates mis-provisioned
	// infrastructure, not a transient fault.
	ErrDaemonUnavailable = errors.New("signald unavailable: max connection attempts exceeded")

	// ErrConnectionTimeout means no pooled connection became free in time.
	ErrConnectionTimeout = errors.New("timed out waiting for a signald connection")

	// ErrTimeout means a correlated response never arrived in time.
	ErrTimeout = errors.New("timed out awaiting signald response")
)
