package graphitesend

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/daniellawrence/graphitesend/internal/testserver"
	"github.com/daniellawrence/graphitesend/sender"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeDialer connects clients to in-memory pipes whose server sides
// are drained into received. fail decides the result of the n-th dial,
// counting from 1.
type pipeDialer struct {
	fail func(n int) error

	mu       sync.Mutex
	dials    int
	servers  []net.Conn
	received bytes.Buffer
}

func (d *pipeDialer) dial(network, address string, timeout time.Duration) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.fail != nil {
		if err := d.fail(d.dials); err != nil {
			return nil, err
		}
	}
	client, server := net.Pipe()
	d.servers = append(d.servers, server)
	go d.drain(server)
	return client, nil
}

func (d *pipeDialer) drain(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			d.mu.Lock()
			d.received.Write(buf[:n])
			d.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (d *pipeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *pipeDialer) Received() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.received.String()
}

func (d *pipeDialer) closeServer(i int) {
	d.mu.Lock()
	conn := d.servers[i]
	d.mu.Unlock()
	conn.Close()
}

func fixedClock() time.Time { return time.Unix(1, 0) }

func itoa(i int) string { return strconv.Itoa(i) }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Host = "carbon.test"
	cfg.Naming.Prefix = String("test")
	cfg.Naming.SystemName = String("")
	return cfg
}

func endpointConfig(e *testserver.MockEndpoint) Config {
	cfg := testConfig()
	cfg.Host = e.Host()
	cfg.Port = e.Port()
	return cfg
}

func TestClient_DryRun(t *testing.T) {
	d := &pipeDialer{}
	cfg := testConfig()
	cfg.DryRun = true
	c, err := New(cfg, WithDialFunc(d.dial), WithClock(fixedClock))
	require.NoError(t, err)
	defer c.Close()

	got, err := c.Send("metric", 1, time.Time{})
	require.NoError(t, err)
	assertMessage(t, "test.metric 1.000000 1\n", got)

	got, err = c.SendDict(map[string]interface{}{"b": 2, "a": 1}, time.Time{})
	require.NoError(t, err)
	assertMessage(t, "test.a 1.000000 1\ntest.b 2.000000 1\n", got)

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(c.Connect(), &cfgErr))
	assert.True(t, errors.As(c.Reconnect(), &cfgErr))
	assert.False(t, c.AutoReconnect(sender.Backoff{MaxAttempts: 1}))
	assert.False(t, c.Connected())
	_, ok := c.Endpoint()
	assert.False(t, ok)
	c.Disconnect()

	assert.Equal(t, 0, d.Dials())
}

func TestClient_DryRunPickleValidates(t *testing.T) {
	cfg := testConfig()
	cfg.Protocol = "pickle"
	cfg.DryRun = true
	c, err := New(cfg)
	require.NoError(t, err)

	got, err := c.SendMessage("test.metric 1 1\n")
	require.NoError(t, err)
	assert.Equal(t, "test.metric 1 1\n", got)

	_, err = c.SendMessage("test.metric 1\n")
	var lineErr *MalformedLineError
	assert.True(t, errors.As(err, &lineErr))
}

func TestClient_SendPlaintext(t *testing.T) {
	endpoint, err := testserver.NewMockEndpoint()
	require.NoError(t, err)
	defer endpoint.Close()

	reg := prometheus.NewRegistry()
	c, err := New(endpointConfig(endpoint), WithClock(fixedClock), WithRegisterer(reg))
	require.NoError(t, err)
	defer c.Close()
	assert.True(t, c.Connected())
	assert.Equal(t, "test.", c.Prefix())

	ack, err := c.Send("metric", 1, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "sent 23 long message: test.metric 1.000000 1\n", ack)

	_, err = c.SendList([]Point{
		{Name: "metric", Value: 1},
		{Name: "metric", Value: 2, Timestamp: time.Unix(2, 0)},
	}, time.Unix(4, 0))
	require.NoError(t, err)

	want := "test.metric 1.000000 1\n" +
		"test.metric 1.000000 4\n" +
		"test.metric 2.000000 2\n"
	assert.Eventually(t, func() bool {
		return endpoint.String() == want
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, endpoint.Accepted())

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Stats().SentMessages.WithLabelValues("plaintext")))
	assert.Equal(t, float64(len(want)), testutil.ToFloat64(c.Stats().SentBytes.WithLabelValues("plaintext")))
}

func TestClient_SendPickle(t *testing.T) {
	endpoint, err := testserver.NewMockEndpoint()
	require.NoError(t, err)
	defer endpoint.Close()

	cfg := endpointConfig(endpoint)
	cfg.Protocol = "pickle_tcp"
	c, err := New(cfg, WithClock(fixedClock))
	require.NoError(t, err)
	defer c.Close()

	metrics := map[string]interface{}{"1": "0.5", "5": 0.25, "15": 1}
	ack, err := c.SendDict(metrics, time.Time{})
	require.NoError(t, err)

	payload, err := sender.EncodeBatch("test.1 0.500000 1\ntest.15 1.000000 1\ntest.5 0.250000 1\n")
	require.NoError(t, err)
	want := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(want, uint32(len(payload)))
	want = append(want, payload...)

	assert.Equal(t, "sent "+itoa(len(want))+" long pickled message", ack)
	assert.Eventually(t, func() bool {
		return bytes.Equal(endpoint.Bytes(), want)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(len(want)), testutil.ToFloat64(c.Stats().SentBytes.WithLabelValues("pickle")))
}

func TestClient_NotConnected(t *testing.T) {
	d := &pipeDialer{}
	cfg := testConfig()
	cfg.ConnectOnCreate = false
	cfg.AutoReconnect = true
	c, err := New(cfg, WithDialFunc(d.dial))
	require.NoError(t, err)

	_, err = c.Send("metric", 1, time.Time{})
	assert.Equal(t, ErrNotConnected, err)
	assert.Equal(t, 0, d.Dials())

	require.NoError(t, c.Connect())
	_, err = c.Send("metric", 1, time.Unix(1, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, d.Dials())
}

func TestClient_ClosedSocketWithoutAutoReconnect(t *testing.T) {
	d := &pipeDialer{}
	reg := prometheus.NewRegistry()
	c, err := New(testConfig(), WithDialFunc(d.dial), WithRegisterer(reg))
	require.NoError(t, err)
	d.closeServer(0)

	_, err = c.Send("metric", 1, time.Time{})
	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Equal(t, sender.SendConnectionClosed, sendErr.Kind)
	assert.Equal(t, 1, d.Dials())
	assert.False(t, c.Connected())
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Stats().Reconnects.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Stats().SendErrors.WithLabelValues("connection_closed")))

	_, err = c.Send("metric", 1, time.Time{})
	assert.Equal(t, ErrNotConnected, err)
}

func TestClient_AutoReconnectRetriesOnce(t *testing.T) {
	d := &pipeDialer{}
	reg := prometheus.NewRegistry()
	cfg := testConfig()
	cfg.AutoReconnect = true
	c, err := New(cfg, WithDialFunc(d.dial), WithRegisterer(reg), WithClock(fixedClock))
	require.NoError(t, err)
	defer c.Close()
	d.closeServer(0)

	ack, err := c.Send("metric", 1, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "sent 23 long message: test.metric 1.000000 1\n", ack)
	assert.Equal(t, 2, d.Dials())
	assert.True(t, c.Connected())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Stats().Reconnects.WithLabelValues("success")))
	assert.Eventually(t, func() bool {
		return d.Received() == "test.metric 1.000000 1\n"
	}, time.Second, 5*time.Millisecond)
}

func TestClient_AutoReconnectFails(t *testing.T) {
	refused := errors.New("connection refused")
	d := &pipeDialer{fail: func(n int) error {
		if n > 1 {
			return refused
		}
		return nil
	}}
	reg := prometheus.NewRegistry()
	cfg := testConfig()
	cfg.AutoReconnect = true
	c, err := New(cfg, WithDialFunc(d.dial), WithRegisterer(reg))
	require.NoError(t, err)
	d.closeServer(0)

	_, err = c.Send("metric", 1, time.Time{})
	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Equal(t, 2, d.Dials())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Stats().Reconnects.WithLabelValues("failure")))
}

func TestClient_ConcurrentDispatch(t *testing.T) {
	endpoint, err := testserver.NewMockEndpoint()
	require.NoError(t, err)
	defer endpoint.Close()

	cfg := endpointConfig(endpoint)
	cfg.Dispatch = DispatchConcurrent
	c, err := New(cfg, WithClock(fixedClock))
	require.NoError(t, err)

	var want []string
	for i := 0; i < 10; i++ {
		name := "metric" + itoa(i)
		ack, err := c.Send(name, i, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, DispatchedAck, ack)
		want = append(want, "test."+name+" "+itoa(i)+".000000 1")
	}
	c.Close()

	sort.Strings(want)
	assert.Eventually(t, func() bool {
		lines := strings.Split(strings.TrimSuffix(endpoint.String(), "\n"), "\n")
		sort.Strings(lines)
		return strings.Join(lines, "\n") == strings.Join(want, "\n")
	}, time.Second, 5*time.Millisecond)
}

func TestClient_ConcurrentDispatchReportsErrors(t *testing.T) {
	d := &pipeDialer{}
	var mu sync.Mutex
	var errs []error
	cfg := testConfig()
	cfg.Dispatch = DispatchConcurrent
	c, err := New(cfg, WithDialFunc(d.dial), WithErrorListener(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}))
	require.NoError(t, err)
	d.closeServer(0)

	ack, err := c.Send("metric", 1, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, DispatchedAck, ack)
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 1)
	var sendErr *SendError
	assert.True(t, errors.As(errs[0], &sendErr))
}

func TestClient_FormatErrorsAreSynchronous(t *testing.T) {
	d := &pipeDialer{}
	cfg := testConfig()
	cfg.Dispatch = DispatchConcurrent
	c, err := New(cfg, WithDialFunc(d.dial))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Send("metric", "not a number", time.Time{})
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestNew_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Protocol = "udp"
	_, err := New(cfg)
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	cfg = testConfig()
	cfg.Timeout.Duration = 0
	noDial := &pipeDialer{}
	_, err = New(cfg, WithDialFunc(noDial.dial))
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "timeout must be positive")
	assert.Equal(t, 0, noDial.Dials())

	d := &pipeDialer{fail: func(int) error {
		return &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host", Name: "carbon.test"}}
	}}
	_, err = New(testConfig(), WithDialFunc(d.dial))
	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, sender.ConnectAddressResolution, connErr.Kind)
	assert.True(t, errors.Is(err, ErrConnect))
}

func TestClient_LowercaseMessage(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	cfg.Naming.Lowercase = true
	c, err := New(cfg)
	require.NoError(t, err)

	got, err := c.SendMessage("Test.METRIC 1 1\n")
	require.NoError(t, err)
	assert.Equal(t, "test.metric 1 1\n", got)
}

func TestClient_LineFormatter(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	cfg.Naming.Lowercase = true
	lf := LineFormatterFunc(func(name string, value float64, ts time.Time) string {
		return "custom." + name + " " + strconv.FormatFloat(value, 'g', -1, 64) + " " + itoa(int(ts.Unix())) + "\n"
	})
	c, err := New(cfg, WithClock(fixedClock), WithLineFormatter(lf))
	require.NoError(t, err)

	got, err := c.SendList([]Point{
		{Name: "A", Value: "1.5"},
		{Name: "b", Value: 2, Timestamp: time.Unix(7, 0)},
	}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "custom.a 1.5 1\ncustom.b 2 7\n", got)

	_, err = c.Send("bad", "not a number", time.Time{})
	var valueErr *ValueFormatError
	assert.True(t, errors.As(err, &valueErr))
}

func TestClient_LineFormatterOutputIsValidatedForPickle(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	cfg.Protocol = "pickle"
	lf := LineFormatterFunc(func(name string, value float64, ts time.Time) string {
		return name + "\n"
	})
	c, err := New(cfg, WithLineFormatter(lf))
	require.NoError(t, err)

	_, err = c.Send("metric", 1, time.Time{})
	var lineErr *MalformedLineError
	assert.True(t, errors.As(err, &lineErr))
}

func TestStats_SharedRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	s1 := newStats(reg)
	s2 := newStats(reg)
	assert.True(t, s1.SentMessages == s2.SentMessages)
}
