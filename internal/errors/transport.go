package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// MapTransportError maps a raw broker client error onto the event channel taxonomy:
//   - context.DeadlineExceeded or a network timeout → ErrTimeout
//   - context.Canceled → returned unchanged so callers can tell shutdown from failure
//   - errors already carrying a sentinel → returned unchanged
//   - anything else → ErrUnavailable
func MapTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrClosed) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if IsNetTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// IsNetTimeout reports whether err is a read/write deadline expiry on a network connection.
func IsNetTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
