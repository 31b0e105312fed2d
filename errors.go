package graphitesend

import "github.com/daniellawrence/graphitesend/sender"

// Errors returned by the sender package, re-exported so that callers
// of Client only need this package.
type (
	ConnectionError      = sender.ConnectionError
	SendError            = sender.SendError
	MalformedLineError   = sender.MalformedLineError
	TimestampFormatError = sender.TimestampFormatError
)

var (
	ErrNotConnected = sender.ErrNotConnected
	ErrEmptyBatch   = sender.ErrEmptyBatch
	ErrFormat       = sender.ErrFormat
	ErrConnect      = sender.ErrConnect
	ErrSend         = sender.ErrSend
)
