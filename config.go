package graphitesend

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/daniellawrence/graphitesend/sender"
	"github.com/hnakamur/ltsvlog"
)

const (
	// DispatchBlocking writes on the caller's goroutine and returns
	// the outcome of the write.
	DispatchBlocking = "blocking"
	// DispatchConcurrent hands the write to a new goroutine and returns
	// at once.
	DispatchConcurrent = "concurrent"
)

// Duration wrapper time.Duration for TOML
type Duration struct {
	time.Duration
}

var _ toml.TextMarshaler = &Duration{}

// UnmarshalText from TOML
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText encode text with TOML format
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Value return time.Duration value
func (d *Duration) Value() time.Duration {
	return d.Duration
}

// Naming controls how metric paths are built.
//
// Prefix, SystemName and Group are pointers so that an absent value
// (nil, use the default) can be told apart from an empty one (suppress
// the segment). CleanNames is nil when names are cleaned by default.
type Naming struct {
	Prefix     *string `toml:"prefix"`
	SystemName *string `toml:"system_name"`
	Group      *string `toml:"group"`
	Suffix     string  `toml:"suffix"`
	Lowercase  bool    `toml:"lowercase_metric_names"`
	CleanNames *bool   `toml:"clean_metric_name"`
	FQDNSquash bool    `toml:"fqdn_squash"`
}

// Clean reports whether metric names are cleaned.
func (n Naming) Clean() bool {
	return n.CleanNames == nil || *n.CleanNames
}

// Config is the configuration of a Client.
type Config struct {
	Protocol        string   `toml:"protocol"`
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	Timeout         Duration `toml:"timeout"`
	ConnectOnCreate bool     `toml:"connect_on_create"`
	DryRun          bool     `toml:"dryrun"`
	Dispatch        string   `toml:"dispatch"`
	AutoReconnect   bool     `toml:"autoreconnect"`
	Naming          Naming   `toml:"naming"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Protocol:        "plaintext",
		Host:            sender.DefaultHost,
		Timeout:         Duration{Duration: sender.DefaultTimeout},
		ConnectOnCreate: true,
		Dispatch:        DispatchBlocking,
	}
}

// LoadConfigFile reads a TOML file over DefaultConfig.
func LoadConfigFile(filename string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(filename, &cfg); err != nil {
		return Config{}, ltsvlog.WrapErr(err, func(err error) error {
			return fmt.Errorf("failed to load config file, err=%v", err)
		}).String("filename", filename).Stack("")
	}
	return cfg, nil
}

// ConfigurationError lists every problem found in a Config.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the configuration and returns a *ConfigurationError
// listing all problems, or nil.
func (c Config) Validate() error {
	var problems []string
	if _, err := sender.ParseEncoding(c.Protocol); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Dispatch {
	case DispatchBlocking, DispatchConcurrent:
	case "":
		problems = append(problems, "dispatch mode must be set")
	default:
		problems = append(problems, fmt.Sprintf("invalid dispatch mode %q, must be one of: %s, %s",
			c.Dispatch, DispatchBlocking, DispatchConcurrent))
	}
	if c.Timeout.Duration <= 0 && !c.DryRun {
		problems = append(problems, fmt.Sprintf("timeout must be positive unless dryrun is enabled, got %s", c.Timeout.Duration))
	}
	if c.Port < 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port must be between 0 and 65535, got %d", c.Port))
	}
	if c.Host == "" && !c.DryRun {
		problems = append(problems, "host must be set unless dryrun is enabled")
	}
	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// Encoding returns the wire encoding selected by Protocol.
func (c Config) Encoding() (sender.Encoding, error) {
	return sender.ParseEncoding(c.Protocol)
}

// Endpoint returns the receiver address. A zero Port selects the
// default port of the protocol.
func (c Config) Endpoint() (sender.Endpoint, error) {
	encoding, err := c.Encoding()
	if err != nil {
		return sender.Endpoint{}, err
	}
	port := c.Port
	if port == 0 {
		port = encoding.DefaultPort()
	}
	return sender.Endpoint{Host: c.Host, Port: port, Timeout: c.Timeout.Duration}, nil
}

// String returns a pointer to s, for the optional fields of Naming.
func String(s string) *string {
	return &s
}

// Bool returns a pointer to b, for the optional fields of Naming.
func Bool(b bool) *bool {
	return &b
}
