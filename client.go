package graphitesend

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/daniellawrence/graphitesend/sender"
	"github.com/hnakamur/ltsvlog"
	"github.com/prometheus/client_golang/prometheus"
)

type options struct {
	errorListener func(error)
	registerer    prometheus.Registerer
	now           func() time.Time
	dial          sender.DialFunc
	lineFormatter LineFormatter
}

// Option customizes a Client.
type Option func(*options)

// WithErrorListener sets a function called with the error of every
// failed concurrent dispatch.
func WithErrorListener(f func(error)) Option {
	return func(o *options) { o.errorListener = f }
}

// WithRegisterer registers the client's counters with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithClock sets the function used for "now" timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithDialFunc sets the function used to open connections.
func WithDialFunc(dial sender.DialFunc) Option {
	return func(o *options) { o.dial = dial }
}

// WithLineFormatter replaces the rendering of Send, SendList and
// SendDict lines. Values are still coerced to float64 and missing
// timestamps resolved before lf is called; naming options other than
// lowercase_metric_names are left to lf.
func WithLineFormatter(lf LineFormatter) Option {
	return func(o *options) { o.lineFormatter = lf }
}

// Client sends metrics to a single carbon receiver over one TCP
// connection.
type Client struct {
	config     Config
	encoding   sender.Encoding
	encoder    sender.Encoder
	formatter  *Formatter
	sender     *sender.TCPSender
	dispatcher dispatcher
	stats      *Stats

	// mu serializes writes and the reconnect that may follow a failed
	// write.
	mu sync.Mutex
}

// New validates cfg and creates a Client. Unless cfg.DryRun is set or
// cfg.ConnectOnCreate is false, the connection is opened before New
// returns.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	encoding, err := cfg.Encoding()
	if err != nil {
		return nil, err
	}
	formatter, err := NewFormatter(cfg.Naming)
	if err != nil {
		return nil, err
	}
	if o.now != nil {
		formatter.now = o.now
	}
	formatter.line = o.lineFormatter

	c := &Client{
		config:     cfg,
		encoding:   encoding,
		encoder:    sender.NewEncoder(encoding),
		formatter:  formatter,
		dispatcher: newDispatcher(cfg.Dispatch, o.errorListener),
		stats:      newStats(o.registerer),
	}
	if cfg.DryRun {
		return c, nil
	}

	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	c.sender, err = sender.NewTCPSender(endpoint, encoding)
	if err != nil {
		return nil, &ConfigurationError{Problems: []string{err.Error()}}
	}
	if o.dial != nil {
		c.sender.SetDialFunc(o.dial)
	}
	c.sender.SetReconnectObserver(c.stats.observeReconnect)

	if cfg.ConnectOnCreate {
		if err := c.sender.Connect(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Prefix returns the path prefix prepended to every metric name.
func (c *Client) Prefix() string { return c.formatter.Prefix() }

// Suffix returns the string appended to every metric name.
func (c *Client) Suffix() string { return c.formatter.Suffix() }

// Encoding returns the wire encoding of the client.
func (c *Client) Encoding() sender.Encoding { return c.encoding }

// Stats returns the client's counters.
func (c *Client) Stats() *Stats { return c.stats }

// Endpoint returns the receiver address and false for dry-run clients.
func (c *Client) Endpoint() (sender.Endpoint, bool) {
	if c.sender == nil {
		return sender.Endpoint{}, false
	}
	return c.sender.Endpoint(), true
}

var errDryRunConnect = &ConfigurationError{Problems: []string{"dryrun client has no endpoint to connect to"}}

// Connect opens the connection if it is not open.
func (c *Client) Connect() error {
	if c.sender == nil {
		return errDryRunConnect
	}
	return c.sender.Connect()
}

// Reconnect closes the connection and opens a new one.
func (c *Client) Reconnect() error {
	if c.sender == nil {
		return errDryRunConnect
	}
	return c.sender.Reconnect()
}

// AutoReconnect reconnects with the backoff policy b and reports
// whether it succeeded.
func (c *Client) AutoReconnect(b sender.Backoff) bool {
	if c.sender == nil {
		return false
	}
	return c.sender.AutoReconnect(b)
}

// Disconnect closes the connection. It never fails.
func (c *Client) Disconnect() {
	if c.sender != nil {
		c.sender.Disconnect()
	}
}

// Connected reports whether the client holds a connection.
func (c *Client) Connected() bool {
	return c.sender != nil && c.sender.Connected()
}

// Wait blocks until every concurrent dispatch has finished.
func (c *Client) Wait() {
	c.dispatcher.wait()
}

// Close waits for pending dispatches and disconnects.
func (c *Client) Close() {
	c.Wait()
	c.Disconnect()
}

// Send sends one metric. A zero ts means now.
func (c *Client) Send(name string, value interface{}, ts time.Time) (string, error) {
	message, err := c.formatter.FormatPoint(name, value, ts)
	if err != nil {
		return "", err
	}
	return c.SendMessage(message)
}

// SendList sends points in one message. Points without a timestamp
// use ts, and a zero ts means now.
func (c *Client) SendList(points []Point, ts time.Time) (string, error) {
	message, err := c.formatter.FormatPoints(points, ts)
	if err != nil {
		return "", err
	}
	return c.SendMessage(message)
}

// SendDict sends one point per map entry in one message, ordered by
// metric name.
func (c *Client) SendDict(metrics map[string]interface{}, ts time.Time) (string, error) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	points := make([]Point, len(names))
	for i, name := range names {
		points[i] = Point{Name: name, Value: metrics[name]}
	}
	return c.SendList(points, ts)
}

// SendMessage sends plaintext protocol lines as they are, converting
// them first when the client speaks the pickle protocol.
//
// A dry-run client only validates the message and returns it. A
// blocking client returns a description of the write. A concurrent
// client returns DispatchedAck before the write is done.
func (c *Client) SendMessage(message string) (string, error) {
	if c.config.Naming.Lowercase {
		message = strings.ToLower(message)
	}

	if c.sender == nil {
		if _, err := c.encoder.Encode(message); err != nil {
			return "", err
		}
		return message, nil
	}

	if !c.sender.Connected() {
		c.stats.observeError(ErrNotConnected)
		return "", ErrNotConnected
	}
	data, err := c.sender.Encode(message)
	if err != nil {
		c.stats.observeError(err)
		return "", err
	}
	return c.dispatcher.dispatch(func() (string, error) {
		return c.write(message, data)
	})
}

func (c *Client) write(message string, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.sender.Write(data)
	if err != nil && c.config.AutoReconnect && !errors.Is(err, ErrNotConnected) {
		ltsvlog.Logger.Info().String("msg", "send failed, reconnecting").
			String("endpoint", c.sender.Endpoint().String()).
			String("err", err.Error()).Log()
		if rerr := c.sender.Reconnect(); rerr == nil {
			err = c.sender.Write(data)
		} else {
			ltsvlog.Logger.Info().String("msg", "reconnect failed").
				String("endpoint", c.sender.Endpoint().String()).
				String("err", rerr.Error()).Log()
		}
	}
	if err != nil {
		c.stats.observeError(err)
		return "", err
	}
	c.stats.observeSent(c.encoding, c.sender.WireLen(data))
	return c.sender.Ack(message, data), nil
}
