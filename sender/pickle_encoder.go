package sender

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	pickle "github.com/kisielk/og-rek"
)

const (
	frameHeaderLen = 4

	// Protocol 3 sends strings as BINUNICODE, which Python 3 receivers
	// decode as UTF-8. Lower protocols use BINSTRING, decoded as ASCII.
	pickleProtocol = 3
)

type pickleEncoder struct{}

func (p *pickleEncoder) Encode(message string) ([]byte, error) {
	return EncodeBatch(message)
}

func (p *pickleEncoder) Ack(message string, wire []byte) string {
	return fmt.Sprintf("sent %d long pickled message", frameHeaderLen+len(wire))
}

// EncodeBatch converts a plaintext message into the payload of a frame
// for carbon's pickle receiver: a pickled list of (path, (timestamp,
// value)) tuples, one per line. TCPSender writes it through a framed
// connection which prefixes the 4-byte big-endian payload length.
//
// The timestamp is sent as a float and the value as the string found
// in the line; the receiver converts both.
func EncodeBatch(message string) ([]byte, error) {
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}

	var batch []interface{}
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, &MalformedLineError{Line: line}
		}
		path, value := fields[0], fields[1]
		ts, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, &TimestampFormatError{Line: line, Timestamp: fields[2], Err: err}
		}
		batch = append(batch, pickle.Tuple{path, pickle.Tuple{ts, value}})
	}
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	var buf bytes.Buffer
	enc := pickle.NewEncoderWithConfig(&buf, &pickle.EncoderConfig{Protocol: pickleProtocol})
	if err := enc.Encode(batch); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
