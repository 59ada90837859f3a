// Package errors is the fabric's stable error-code registry. Every
// error kind named in spec.md §7 gets a code here so it can cross a
// process boundary (the admin HTTP surface, a log line) as a string
// instead of a Go type.
package errors

import "sort"

// Code is a stable, API-facing error code. Once published it is
// treated as stable.
type Code string

// CodeMeta carries the handling policy for a Code.
type CodeMeta struct {
	Retryable bool
	Kind      string // transport|frame|parse|protocol|pool
	Description string
}

// ---- transport (spec.md §7: socket read/write failure, short send) ----
const (
	TransportReadFailed  Code = "transport.read_failed"
	TransportWriteFailed Code = "transport.write_failed"
	TransportShortSend   Code = "transport.short_send"
	TransportClosed      Code = "transport.closed"
)

// ---- frame (start/end mismatch, oversize length) ----
const (
	FrameStartMismatch Code = "frame.start_mismatch"
	FrameEndMismatch   Code = "frame.end_mismatch"
	FrameShortRead     Code = "frame.short_read"
	FrameTooLarge      Code = "frame.too_large"
)

// ---- parse (malformed container text) ----
const (
	ParseMalformed   Code = "parse.malformed"
	ParseNoHeader    Code = "parse.no_header"
	ParseChildCount  Code = "parse.child_count_mismatch"
)

// ---- protocol (message before confirmation, unknown type, bad key) ----
const (
	ProtocolNotConfirmed Code = "protocol.not_confirmed"
	ProtocolUnknownType  Code = "protocol.unknown_message_type"
	ProtocolBadKey       Code = "protocol.bad_connection_key"
)

// ---- pool (push after teardown began) ----
const (
	PoolLocked Code = "pool.locked"
)

var registry = map[Code]CodeMeta{
	TransportReadFailed:  {Retryable: false, Kind: "transport", Description: "socket read failed"},
	TransportWriteFailed: {Retryable: false, Kind: "transport", Description: "socket write failed"},
	TransportShortSend:   {Retryable: false, Kind: "transport", Description: "socket accepted fewer bytes than requested"},
	TransportClosed:      {Retryable: false, Kind: "transport", Description: "connection closed"},

	FrameStartMismatch: {Retryable: true, Kind: "frame", Description: "start sentinel mismatch, resynchronizing"},
	FrameEndMismatch:   {Retryable: true, Kind: "frame", Description: "end sentinel mismatch, resynchronizing"},
	FrameShortRead:     {Retryable: true, Kind: "frame", Description: "fewer bytes read than the frame declared"},
	FrameTooLarge:      {Retryable: false, Kind: "frame", Description: "declared length exceeds configured maximum"},

	ParseMalformed:  {Retryable: false, Kind: "parse", Description: "container text malformed"},
	ParseNoHeader:   {Retryable: false, Kind: "parse", Description: "missing @header block"},
	ParseChildCount: {Retryable: false, Kind: "parse", Description: "declared child count never satisfied"},

	ProtocolNotConfirmed: {Retryable: false, Kind: "protocol", Description: "message received before handshake confirmation"},
	ProtocolUnknownType:  {Retryable: false, Kind: "protocol", Description: "unknown message_type"},
	ProtocolBadKey:       {Retryable: false, Kind: "protocol", Description: "connection key mismatch"},

	PoolLocked: {Retryable: false, Kind: "pool", Description: "push rejected, pool is locked for teardown"},
}

// Meta returns the handling metadata for a code.
func Meta(code Code) (CodeMeta, bool) {
	m, ok := registry[code]
	return m, ok
}

// List returns every known code, sorted.
func List() []Code {
	out := make([]Code, 0, len(registry))
	for c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
