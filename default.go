package graphitesend

import (
	"errors"
	"sync"
	"time"
)

// ErrNotInitialized is returned by the package level send functions
// before Init is called.
var ErrNotInitialized = errors.New("must call graphitesend.Init before sending")

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Init creates the package level client used by Send, SendList and
// SendDict, closing any previous one.
func Init(cfg Config, opts ...Option) (*Client, error) {
	Reset()
	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	defaultMu.Lock()
	defaultClient = c
	defaultMu.Unlock()
	return c, nil
}

// Reset closes and forgets the package level client. It reports
// whether there was one.
func Reset() bool {
	defaultMu.Lock()
	c := defaultClient
	defaultClient = nil
	defaultMu.Unlock()
	if c == nil {
		return false
	}
	c.Close()
	return true
}

func getDefault() (*Client, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		return nil, ErrNotInitialized
	}
	return defaultClient, nil
}

// Send sends one metric with the package level client.
func Send(name string, value interface{}, ts time.Time) (string, error) {
	c, err := getDefault()
	if err != nil {
		return "", err
	}
	return c.Send(name, value, ts)
}

// SendList sends points with the package level client.
func SendList(points []Point, ts time.Time) (string, error) {
	c, err := getDefault()
	if err != nil {
		return "", err
	}
	return c.SendList(points, ts)
}

// SendDict sends metrics with the package level client.
func SendDict(metrics map[string]interface{}, ts time.Time) (string, error) {
	c, err := getDefault()
	if err != nil {
		return "", err
	}
	return c.SendDict(metrics, ts)
}
