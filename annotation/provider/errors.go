package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrUnavailable marks failures where the backend could not be reached at all. Retrying the same
// request cannot help, so callers treat it as fatal.
var ErrUnavailable = errors.New("backend unavailable")

// Classify wraps err with ErrUnavailable when it is a connection-level failure. Other errors,
// including context cancellation, are returned unchanged.
func Classify(backend string, err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isUnreachable(err) {
		return fmt.Errorf("%s: %w: %w", backend, ErrUnavailable, err)
	}
	return err
}

func isUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}
