package sender

import (
	"net"
	"strconv"
	"time"

	"github.com/hnakamur/netutil"
)

const (
	// DefaultHost is the carbon host used when none is configured.
	DefaultHost = "graphite"
	// DefaultPlaintextPort is the port of carbon's line receiver.
	DefaultPlaintextPort = 2003
	// DefaultPicklePort is the port of carbon's pickle receiver.
	DefaultPicklePort = 2004
	// DefaultTimeout bounds both connecting and writing.
	DefaultTimeout = 2 * time.Second
)

// Endpoint is the address of a carbon receiver plus the timeout
// applied to connecting and writing.
type Endpoint struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// ParseEndpoint parses an address in the "host:port" form.
func ParseEndpoint(address string, timeout time.Duration) (Endpoint, error) {
	host, port, err := netutil.SplitHostPort(address)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{Host: host, Port: port, Timeout: timeout}, nil
}

// Address returns the endpoint in the form accepted by net.Dial.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Address()
}
