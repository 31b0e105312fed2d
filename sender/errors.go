package sender

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

var (
	// ErrNotConnected is returned when a write is attempted without a
	// live socket. It is never recovered automatically.
	ErrNotConnected = errors.New("socket was not created before send")

	// ErrEmptyBatch is returned when a pickle batch has no lines.
	ErrEmptyBatch = errors.New("no messages to send")

	// ErrFormat is matched by every error caused by malformed metric
	// data, so callers can test errors.Is(err, ErrFormat).
	ErrFormat = errors.New("malformed metric data")

	// ErrConnect is matched by every *ConnectionError.
	ErrConnect = errors.New("connect failed")

	// ErrSend is matched by every *SendError.
	ErrSend = errors.New("send failed")
)

// MalformedLineError reports a batch line without exactly three
// fields.
type MalformedLineError struct {
	Line string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("message must contain metric name, value and timestamp: %q", e.Line)
}

func (e *MalformedLineError) Is(target error) bool { return target == ErrFormat }

// TimestampFormatError reports a batch line whose timestamp is not a
// number.
type TimestampFormatError struct {
	Line      string
	Timestamp string
	Err       error
}

func (e *TimestampFormatError) Error() string {
	return fmt.Sprintf("timestamp must be float or int, got %q in line %q", e.Timestamp, e.Line)
}

func (e *TimestampFormatError) Unwrap() error { return e.Err }

func (e *TimestampFormatError) Is(target error) bool { return target == ErrFormat }

// ConnectErrorKind classifies connect failures.
type ConnectErrorKind int

const (
	ConnectTransport ConnectErrorKind = iota
	ConnectTimeout
	ConnectAddressResolution
)

func (k ConnectErrorKind) String() string {
	switch k {
	case ConnectTimeout:
		return "timeout"
	case ConnectAddressResolution:
		return "address_resolution"
	default:
		return "transport"
	}
}

// ConnectionError is returned by Connect and Reconnect.
type ConnectionError struct {
	Kind     ConnectErrorKind
	Endpoint Endpoint
	Err      error
}

func (e *ConnectionError) Error() string {
	switch e.Kind {
	case ConnectTimeout:
		return fmt.Sprintf("took over %s to connect to %s", e.Endpoint.Timeout, e.Endpoint)
	case ConnectAddressResolution:
		return fmt.Sprintf("no address associated with hostname %s: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("unknown error while connecting to %s: %v", e.Endpoint, e.Err)
	}
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnect }

// Timeout reports whether the connect attempt timed out.
func (e *ConnectionError) Timeout() bool { return e.Kind == ConnectTimeout }

// SendErrorKind classifies write failures.
type SendErrorKind int

const (
	SendUnknownTransport SendErrorKind = iota
	SendConnectionClosed
	SendAddressResolution
	SendTimeout
)

func (k SendErrorKind) String() string {
	switch k {
	case SendConnectionClosed:
		return "connection_closed"
	case SendAddressResolution:
		return "address_resolution"
	case SendTimeout:
		return "timeout"
	default:
		return "unknown_transport"
	}
}

// SendError is returned when writing to an established connection
// fails.
type SendError struct {
	Kind     SendErrorKind
	Endpoint Endpoint
	Err      error
}

func (e *SendError) Error() string {
	switch e.Kind {
	case SendConnectionClosed:
		return fmt.Sprintf("socket closed before able to send data to %s: %v", e.Endpoint, e.Err)
	case SendAddressResolution:
		return fmt.Sprintf("failed to send data to %s: %v", e.Endpoint, e.Err)
	case SendTimeout:
		return fmt.Sprintf("took over %s to send data to %s", e.Endpoint.Timeout, e.Endpoint)
	default:
		return fmt.Sprintf("unknown error while trying to send data down socket to %s: %v", e.Endpoint, e.Err)
	}
}

func (e *SendError) Unwrap() error { return e.Err }

func (e *SendError) Is(target error) bool { return target == ErrSend }

// Timeout reports whether the write hit its deadline.
func (e *SendError) Timeout() bool { return e.Kind == SendTimeout }

func newConnectionError(endpoint Endpoint, err error) *ConnectionError {
	kind := ConnectTransport
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		kind = ConnectAddressResolution
	case isTimeout(err):
		kind = ConnectTimeout
	}
	return &ConnectionError{Kind: kind, Endpoint: endpoint, Err: err}
}

func newSendError(endpoint Endpoint, err error) *SendError {
	kind := SendUnknownTransport
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr):
		kind = SendAddressResolution
	case isTimeout(err):
		kind = SendTimeout
	case errors.Is(err, net.ErrClosed),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, io.EOF),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &opErr):
		kind = SendConnectionClosed
	}
	return &SendError{Kind: kind, Endpoint: endpoint, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
