package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// DecodeError reports an inbound frame that is not a valid envelope.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode envelope: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var (
	errNotPair    = errors.New("frame is not a two-element array")
	errTagInvalid = errors.New("type tag is not an integer")
)

// Encode serializes [tag, payload]. HTML characters are written literally,
// so error events carry "<ERROR>" rather than \u003cERROR\u003e.
func Encode(tag Tag, payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([2]any{tag, payload}); err != nil {
		return nil, fmt.Errorf("encode envelope %s: %w", tag, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses a frame produced by Encode.
func Decode(data []byte) (Envelope, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return Envelope{}, &DecodeError{Err: err}
	}
	if len(parts) != 2 {
		return Envelope{}, &DecodeError{Err: errNotPair}
	}

	tag, err := decodeTag(parts[0])
	if err != nil {
		return Envelope{}, &DecodeError{Err: err}
	}

	return Envelope{Type: tag, Payload: parts[1]}, nil
}

// decodeTag accepts any integral JSON number, so 5 and 5.0 are the same tag.
func decodeTag(raw json.RawMessage) (Tag, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return 0, errTagInvalid
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, errTagInvalid
	}
	if i, err := n.Int64(); err == nil {
		if i < math.MinInt32 || i > math.MaxInt32 {
			return 0, errTagInvalid
		}
		return Tag(i), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, errTagInvalid
	}
	return Tag(f), nil
}

// LogPrefix is the first payload element of a log event.
func LogPrefix(id Identity) string {
	return id.Name() + ":"
}

// ErrorPrefix is the first payload element of an error event.
func ErrorPrefix(id Identity) string {
	return id.Name() + ": <ERROR>"
}

// LogPayload builds the payload of a log event.
func LogPayload(id Identity, values ...any) []any {
	return prefixed(LogPrefix(id), values)
}

// ErrorPayload builds the payload of an error event.
func ErrorPayload(id Identity, values ...any) []any {
	return prefixed(ErrorPrefix(id), values)
}

func prefixed(prefix string, values []any) []any {
	out := make([]any, 0, len(values)+1)
	out = append(out, prefix)
	return append(out, values...)
}
