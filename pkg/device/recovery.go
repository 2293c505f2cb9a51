package device

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

// RecoveryAction determines how DeviceClient handles an operation failure.
type RecoveryAction int

const (
	// NoRetry — the error is not recoverable (bad request, protocol error, timeout).
	NoRetry RecoveryAction = iota
	// RetrySameSession — transient error, retry the same call against the
	// existing session (e.g. element temporarily not interactable).
	RetrySameSession
	// RetryNewSession — transport failure, the session must be reinitialized
	// before retrying.
	RetryNewSession
)

// ClassifyError determines the recovery action for a DeviceClient operation
// error, so callers can decide between retrying in place, recreating the
// session, or giving up.
func ClassifyError(err error) RecoveryAction {
	if err == nil {
		return NoRetry
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NoRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NoRetry
		}
		return RetryNewSession
	}

	if isConnectionError(err) {
		return RetryNewSession
	}

	var se *SessionError
	if errors.As(err, &se) {
		return NoRetry
	}

	var ee *ElementError
	if errors.As(err, &ee) {
		return RetrySameSession
	}

	return NoRetry
}

func isConnectionError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, e := range []string{"connection refused", "connection reset", "broken pipe", "connection closed", "no such host"} {
		if strings.Contains(msg, e) {
			return true
		}
	}
	return false
}
