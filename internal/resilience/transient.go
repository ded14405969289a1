package resilience

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// IsTransientStatus reports whether an HTTP status code indicates a
// condition that is safe to retry.
func IsTransientStatus(code int) bool {
	switch code {
	case 408, // Request Timeout
		429: // Too Many Requests
		return true
	default:
		return code >= 500
	}
}

// IsNetworkTransient reports whether err looks like a transport-level
// failure (timeout, reset, refused) that a retry might clear.
func IsNetworkTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}
