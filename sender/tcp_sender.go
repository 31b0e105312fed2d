package sender

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/hnakamur/ltsvlog"
	"github.com/hnakamur/netutil"
	"github.com/lomik/graphite-pickle/framing"
)

// DialFunc has the signature of net.DialTimeout.
type DialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

// TCPSender owns at most one TCP connection to a carbon receiver.
// Its methods are safe for concurrent use.
type TCPSender struct {
	endpoint Endpoint
	encoding Encoding
	encoder  Encoder

	mu   sync.Mutex
	conn net.Conn
	// wire is conn, or conn wrapped in a length prefixed frame for
	// the pickle encoding.
	wire io.Writer

	dial        DialFunc
	sleep       func(time.Duration)
	intn        func(int) int
	onReconnect func(err error)
}

// NewTCPSender returns a disconnected sender which writes messages to
// endpoint in the given encoding.
func NewTCPSender(endpoint Endpoint, encoding Encoding) (*TCPSender, error) {
	if _, _, err := netutil.SplitHostPort(endpoint.Address()); err != nil {
		return nil, err
	}
	if endpoint.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", endpoint.Timeout)
	}
	return &TCPSender{
		endpoint: endpoint,
		encoding: encoding,
		encoder:  NewEncoder(encoding),
		dial:     net.DialTimeout,
		sleep:    time.Sleep,
		intn:     rand.Intn,
	}, nil
}

// SetDialFunc replaces the function used to open connections.
func (s *TCPSender) SetDialFunc(dial DialFunc) {
	s.mu.Lock()
	s.dial = dial
	s.mu.Unlock()
}

// SetReconnectObserver registers f to be called after every reconnect
// attempt with its result.
func (s *TCPSender) SetReconnectObserver(f func(err error)) {
	s.mu.Lock()
	s.onReconnect = f
	s.mu.Unlock()
}

// Encode converts message into the bytes written by Write.
func (s *TCPSender) Encode(message string) ([]byte, error) {
	return s.encoder.Encode(message)
}

// Ack describes a successful write of wire.
func (s *TCPSender) Ack(message string, wire []byte) string {
	return s.encoder.Ack(message, wire)
}

// WireLen returns the number of bytes Write puts on the wire for data.
func (s *TCPSender) WireLen(data []byte) int {
	if s.encoding == EncodingPickle {
		return frameHeaderLen + len(data)
	}
	return len(data)
}

// Endpoint returns the receiver address.
func (s *TCPSender) Endpoint() Endpoint {
	return s.endpoint
}

// Connected reports whether the sender holds a connection.
func (s *TCPSender) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Connect opens the connection. It does nothing when already connected.
func (s *TCPSender) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked()
}

func (s *TCPSender) connectLocked() error {
	if s.conn != nil {
		return nil
	}
	conn, err := s.dial("tcp", s.endpoint.Address(), s.endpoint.Timeout)
	if err != nil {
		return newConnectionError(s.endpoint, err)
	}
	var wire io.Writer = conn
	if s.encoding == EncodingPickle {
		framed, err := framing.NewConn(conn, byte(frameHeaderLen), binary.BigEndian)
		if err != nil {
			conn.Close()
			return newConnectionError(s.endpoint, err)
		}
		wire = framed
	}
	s.conn = conn
	s.wire = wire
	if ltsvlog.Logger.DebugEnabled() {
		ltsvlog.Logger.Debug().String("msg", "connected").
			String("endpoint", s.endpoint.String()).Log()
	}
	return nil
}

// Disconnect closes the connection. Close failures are logged and
// otherwise ignored; afterwards the sender is always disconnected.
func (s *TCPSender) Disconnect() {
	s.mu.Lock()
	s.disconnectLocked()
	s.mu.Unlock()
}

func (s *TCPSender) disconnectLocked() {
	if s.conn == nil {
		return
	}
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil && ltsvlog.Logger.DebugEnabled() {
			ltsvlog.Logger.Debug().String("msg", "failed to shutdown connection").
				String("endpoint", s.endpoint.String()).
				String("err", err.Error()).Log()
		}
	}
	if err := s.conn.Close(); err != nil && ltsvlog.Logger.DebugEnabled() {
		ltsvlog.Logger.Debug().String("msg", "failed to close connection").
			String("endpoint", s.endpoint.String()).
			String("err", err.Error()).Log()
	}
	s.conn = nil
	s.wire = nil
}

// Reconnect closes any existing connection and opens a new one.
func (s *TCPSender) Reconnect() error {
	s.mu.Lock()
	s.disconnectLocked()
	err := s.connectLocked()
	f := s.onReconnect
	s.mu.Unlock()
	if f != nil {
		f(err)
	}
	return err
}

// Write sends data over the connection with a deadline of the endpoint
// timeout. Pickle payloads are sent as one length prefixed frame. A failed write leaves the sender disconnected.
func (s *TCPSender) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.endpoint.Timeout)); err != nil {
		s.disconnectLocked()
		return newSendError(s.endpoint, err)
	}
	if _, err := s.wire.Write(data); err != nil {
		s.disconnectLocked()
		return newSendError(s.endpoint, err)
	}
	return nil
}

// Backoff controls AutoReconnect.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// JitterMax adds a random whole number of seconds in [1, JitterMax]
	// to exponential delays. Values under one second disable jitter.
	JitterMax   time.Duration
	Exponential bool
}

// DefaultBackoff is the policy used when none is given.
var DefaultBackoff = Backoff{
	MaxAttempts: 10,
	BaseDelay:   2 * time.Second,
	JitterMax:   5 * time.Second,
	Exponential: true,
}

// Delay returns the wait after the failed attempt with the 1-based
// number attempt. With Exponential set it is BaseDelay in seconds
// raised to attempt, plus jitter. intn must behave like rand.Intn.
func (b Backoff) Delay(attempt int, intn func(int) int) time.Duration {
	if !b.Exponential {
		return b.BaseDelay
	}
	secs := math.Pow(b.BaseDelay.Seconds(), float64(attempt))
	if jitter := int(b.JitterMax / time.Second); jitter >= 1 && intn != nil {
		secs += float64(intn(jitter) + 1)
	}
	if secs*float64(time.Second) >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(secs * float64(time.Second))
}

// AutoReconnect retries Reconnect up to b.MaxAttempts times, sleeping
// between failed attempts, and reports whether it succeeded. Failures
// are logged, never returned.
func (s *TCPSender) AutoReconnect(b Backoff) bool {
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		err := s.Reconnect()
		if err == nil {
			ltsvlog.Logger.Info().String("msg", "reconnected").
				String("endpoint", s.endpoint.String()).
				Int("attempt", attempt).Log()
			return true
		}
		ltsvlog.Logger.Info().String("msg", "failed to reconnect").
			String("endpoint", s.endpoint.String()).
			Int("attempt", attempt).
			Int("maxAttempts", b.MaxAttempts).
			String("err", err.Error()).Log()
		if attempt < b.MaxAttempts {
			s.sleep(b.Delay(attempt, s.intn))
		}
	}
	return false
}
