package sender

import "fmt"

const ackPreviewLen = 75

type textEncoder struct{}

func (p *textEncoder) Encode(message string) ([]byte, error) {
	return []byte(message), nil
}

func (p *textEncoder) Ack(message string, wire []byte) string {
	preview := message
	if len(preview) > ackPreviewLen {
		preview = preview[:ackPreviewLen]
	}
	return fmt.Sprintf("sent %d long message: %s", len(wire), preview)
}
