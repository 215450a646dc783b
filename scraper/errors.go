package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrNetwork indicates the fetch never produced a usable response: a
// connection failure or a timeout.
type ErrNetwork struct {
	Err     error
	Timeout bool
}

func (e ErrNetwork) Error() string {
	if e.Timeout {
		return fmt.Errorf("timeout: %w", e.Err).Error()
	}
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrNetwork) Unwrap() error {
	return e.Err
}

// ErrHTTPStatus indicates the origin answered with a non-success status.
type ErrHTTPStatus struct {
	Code int
	Err  error
}

func (e ErrHTTPStatus) Error() string {
	return fmt.Sprintf("http status %d: %v", e.Code, e.Err)
}

func (e ErrHTTPStatus) Unwrap() error {
	return e.Err
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNetwork{Err: err, Timeout: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrNetwork{Err: err, Timeout: true}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrNetwork{Err: err}
	}

	if statusCode >= http.StatusBadRequest {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		return ErrHTTPStatus{Code: statusCode, Err: wrapped}
	}

	return err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var network ErrNetwork
	if errors.As(err, &network) {
		if network.Timeout {
			return "timeout"
		}
		return "connection"
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		switch status.Code {
		case http.StatusForbidden:
			return "forbidden"
		case http.StatusNotFound:
			return "not_found"
		case http.StatusTooManyRequests:
			return "rate_limited"
		default:
			return "http_status"
		}
	}
	return "other"
}
