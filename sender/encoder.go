package sender

import (
	"fmt"
	"strings"
)

// Encoding selects the wire protocol spoken to carbon.
type Encoding int

const (
	// EncodingText is carbon's newline delimited plaintext protocol.
	EncodingText Encoding = iota + 1
	// EncodingPickle is carbon's length prefixed pickle protocol.
	EncodingPickle
)

var encodingNames = map[string]Encoding{
	"plaintext_tcp": EncodingText,
	"plaintext":     EncodingText,
	"plain":         EncodingText,
	"pickle_tcp":    EncodingPickle,
	"pickle":        EncodingPickle,
}

// EncodingNames lists the protocol selectors accepted by ParseEncoding.
var EncodingNames = []string{"plaintext_tcp", "plaintext", "plain", "pickle_tcp", "pickle"}

// ParseEncoding converts a protocol selector into an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	e, ok := encodingNames[name]
	if !ok {
		return 0, fmt.Errorf("invalid protocol %q, must be one of: %s",
			name, strings.Join(EncodingNames, ", "))
	}
	return e, nil
}

func (e Encoding) String() string {
	switch e {
	case EncodingText:
		return "plaintext"
	case EncodingPickle:
		return "pickle"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// DefaultPort returns the port carbon listens on for the encoding.
func (e Encoding) DefaultPort() int {
	if e == EncodingPickle {
		return DefaultPicklePort
	}
	return DefaultPlaintextPort
}

// Encoder turns a finished plaintext message into the bytes written on
// the wire.
type Encoder interface {
	Encode(message string) ([]byte, error)
	// Ack describes a successful write of wire, which was encoded
	// from message.
	Ack(message string, wire []byte) string
}

// NewEncoder returns the Encoder for encoding.
func NewEncoder(encoding Encoding) Encoder {
	switch encoding {
	case EncodingText:
		return &textEncoder{}
	case EncodingPickle:
		return &pickleEncoder{}
	default:
		panic("should not happen")
	}
}
