package graphitesend

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/daniellawrence/graphitesend/sender"
	"github.com/hnakamur/ltsvlog"
	"github.com/spf13/cast"
)

// DefaultPrefix is the first path segment when Naming.Prefix is nil.
const DefaultPrefix = "systems"

var nameCleaner = strings.NewReplacer(
	"(", "_",
	")", "",
	" ", "_",
	"-", "_",
	"/", "_",
	"\\", "_",
)

// hostname is replaced in tests.
var hostname = os.Hostname

// CleanName replaces characters carbon does not accept in a path.
// Cleaning a clean name returns it unchanged.
func CleanName(raw string) string {
	return nameCleaner.Replace(raw)
}

// BuildPrefix joins the prefix, system name and group segments of n
// with dots and returns the result with a trailing dot, or "" when all
// segments are suppressed.
func BuildPrefix(n Naming) (string, error) {
	var parts []string

	prefix := DefaultPrefix
	if n.Prefix != nil {
		prefix = *n.Prefix
	}
	if prefix != "" {
		parts = append(parts, prefix)
	}

	var systemName string
	if n.SystemName != nil {
		systemName = *n.SystemName
	} else {
		h, err := hostname()
		if err != nil {
			return "", ltsvlog.WrapErr(err, func(err error) error {
				return fmt.Errorf("failed to get hostname for system name, err=%v", err)
			}).Stack("")
		}
		systemName = h
	}
	if systemName != "" {
		if n.FQDNSquash {
			systemName = strings.Replace(systemName, ".", "_", -1)
		}
		parts = append(parts, systemName)
	}

	if n.Group != nil {
		parts = append(parts, *n.Group)
	}

	p := strings.Join(parts, ".")
	p = strings.Replace(p, " ", "_", -1)
	if p == "" {
		return "", nil
	}
	p += "."
	for strings.Contains(p, "..") {
		p = strings.Replace(p, "..", ".", -1)
	}
	if p == "." {
		return "", nil
	}
	return p, nil
}

// ValueFormatError is returned when a metric value is not a number.
type ValueFormatError struct {
	Name  string
	Value interface{}
	Err   error
}

func (e *ValueFormatError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("metric value %#v is not a number", e.Value)
	}
	return fmt.Sprintf("value %#v of metric %q is not a number", e.Value, e.Name)
}

func (e *ValueFormatError) Unwrap() error { return e.Err }

func (e *ValueFormatError) Is(target error) bool { return target == sender.ErrFormat }

// ParseMetricValue converts v to a float64. Numbers of any Go kind and
// numeric strings are accepted.
func ParseMetricValue(v interface{}) (float64, error) {
	switch x := v.(type) {
	case nil, bool:
		return 0, &ValueFormatError{Value: v}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, &ValueFormatError{Value: v, Err: err}
		}
		return f, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, &ValueFormatError{Value: v, Err: err}
	}
	return f, nil
}

// Point is one observation. A zero Timestamp inherits the timestamp of
// the batch it is sent in.
type Point struct {
	Name      string
	Value     interface{}
	Timestamp time.Time
}

// LineFormatter renders one plaintext protocol line, newline
// included. The value is already coerced and the timestamp resolved.
type LineFormatter interface {
	FormatLine(name string, value float64, ts time.Time) string
}

// LineFormatterFunc adapts a function to LineFormatter.
type LineFormatterFunc func(name string, value float64, ts time.Time) string

func (f LineFormatterFunc) FormatLine(name string, value float64, ts time.Time) string {
	return f(name, value, ts)
}

// Formatter renders metric points as plaintext protocol lines.
type Formatter struct {
	prefix    string
	suffix    string
	lowercase bool
	clean     bool
	now       func() time.Time
	line      LineFormatter
}

// NewFormatter materializes the prefix of n.
func NewFormatter(n Naming) (*Formatter, error) {
	prefix, err := BuildPrefix(n)
	if err != nil {
		return nil, err
	}
	return &Formatter{
		prefix:    prefix,
		suffix:    n.Suffix,
		lowercase: n.Lowercase,
		clean:     n.Clean(),
		now:       time.Now,
	}, nil
}

func (f *Formatter) Prefix() string { return f.prefix }

func (f *Formatter) Suffix() string { return f.suffix }

// CleanName cleans raw unless cleaning is disabled.
func (f *Formatter) CleanName(raw string) string {
	if !f.clean {
		return raw
	}
	return CleanName(raw)
}

// FormatPoint renders a single line. A zero ts means now.
func (f *Formatter) FormatPoint(name string, value interface{}, ts time.Time) (string, error) {
	if ts.IsZero() {
		ts = f.now()
	}
	b, err := f.appendLine(nil, name, value, ts)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FormatPoints renders points in order. Points without a timestamp use
// ts, and a zero ts is replaced by the current time once for the whole
// batch.
func (f *Formatter) FormatPoints(points []Point, ts time.Time) (string, error) {
	if ts.IsZero() {
		ts = f.now()
	}
	var b []byte
	for _, p := range points {
		pts := p.Timestamp
		if pts.IsZero() {
			pts = ts
		}
		var err error
		b, err = f.appendLine(b, p.Name, p.Value, pts)
		if err != nil {
			return "", err
		}
	}
	return string(b), nil
}

func (f *Formatter) appendLine(b []byte, name string, value interface{}, ts time.Time) ([]byte, error) {
	v, err := ParseMetricValue(value)
	if err != nil {
		if vErr, ok := err.(*ValueFormatError); ok {
			vErr.Name = name
		}
		return nil, err
	}
	if f.line != nil {
		return append(b, f.line.FormatLine(name, v, ts)...), nil
	}

	cleaned := f.CleanName(name)
	if ltsvlog.Logger.DebugEnabled() {
		ltsvlog.Logger.Debug().String("msg", "format metric").
			String("metric", name).String("cleaned", cleaned).Log()
	}

	start := len(b)
	b = append(b, f.prefix...)
	b = append(b, cleaned...)
	b = append(b, f.suffix...)
	b = append(b, ' ')
	b = appendValue(b, v)
	b = append(b, ' ')
	b = strconv.AppendInt(b, ts.Unix(), 10)
	b = append(b, '\n')
	if f.lowercase {
		line := strings.ToLower(string(b[start:]))
		b = append(b[:start], line...)
	}
	return b, nil
}

// appendValue renders v with six decimals, and non-finite values as
// nan, inf and -inf.
func appendValue(b []byte, v float64) []byte {
	switch {
	case math.IsNaN(v):
		return append(b, "nan"...)
	case math.IsInf(v, 1):
		return append(b, "inf"...)
	case math.IsInf(v, -1):
		return append(b, "-inf"...)
	}
	return strconv.AppendFloat(b, v, 'f', 6, 64)
}
