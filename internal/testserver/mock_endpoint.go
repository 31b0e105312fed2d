package testserver

import (
	"bytes"
	"net"
	"sync"
)

// MockEndpoint is a TCP listener on a loopback port that records every
// byte written to it by any connection.
type MockEndpoint struct {
	listener net.Listener

	mu       sync.Mutex
	accepted int
	conns    []net.Conn
	data     bytes.Buffer
}

func NewMockEndpoint() (*MockEndpoint, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return nil, err
	}
	e := &MockEndpoint{listener: listener}
	go e.listen()
	return e, nil
}

func (e *MockEndpoint) Addr() string {
	return e.listener.Addr().String()
}

func (e *MockEndpoint) Host() string {
	return e.listener.Addr().(*net.TCPAddr).IP.String()
}

func (e *MockEndpoint) Port() int {
	return e.listener.Addr().(*net.TCPAddr).Port
}

// Close stops accepting and closes every accepted connection.
func (e *MockEndpoint) Close() {
	e.listener.Close()
	e.CloseConns()
}

// CloseConns closes the accepted connections but keeps listening.
func (e *MockEndpoint) CloseConns() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, conn := range e.conns {
		conn.Close()
	}
	e.conns = nil
}

func (e *MockEndpoint) listen() {
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			return
		}
		e.mu.Lock()
		e.accepted++
		e.conns = append(e.conns, conn)
		e.mu.Unlock()
		go e.read(conn)
	}
}

func (e *MockEndpoint) read(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			e.mu.Lock()
			e.data.Write(buf[:n])
			e.mu.Unlock()
		}
		if err != nil {
			conn.Close()
			return
		}
	}
}

// Accepted returns the number of connections accepted so far.
func (e *MockEndpoint) Accepted() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accepted
}

// Bytes returns a copy of everything received.
func (e *MockEndpoint) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.data.Bytes()...)
}

func (e *MockEndpoint) String() string {
	return string(e.Bytes())
}

// Len returns the number of bytes received.
func (e *MockEndpoint) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data.Len()
}
