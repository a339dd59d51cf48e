package protocol

import (
	"encoding/json"
	"slices"
	"strconv"
)

// Tag categorizes an envelope.
type Tag int

// Reserved tags.
const (
	TagLog      Tag = 0
	TagError    Tag = 1
	TagIdentify Tag = 2
)

// Reserved reports whether t is one of the control tags.
func (t Tag) Reserved() bool {
	return t == TagLog || t == TagError || t == TagIdentify
}

func (t Tag) String() string {
	switch t {
	case TagLog:
		return "log"
	case TagError:
		return "error"
	case TagIdentify:
		return "identify"
	}
	return strconv.Itoa(int(t))
}

// Envelope is a decoded [type, payload] frame.
type Envelope struct {
	Type    Tag
	Payload json.RawMessage
}

// Unmarshal decodes the payload into v.
func (e Envelope) Unmarshal(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Value decodes the payload into generic JSON values
// (map[string]any, []any, float64, string, bool or nil).
func (e Envelope) Value() (any, error) {
	var v any
	if err := e.Unmarshal(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Identity is the name a client announces and the tags it wants to receive.
// The zero value is invalid; build one with NewIdentity.
type Identity struct {
	name string
	subs []Tag
}

// NewIdentity returns an Identity subscribed to tags. Duplicate tags are
// dropped, keeping first-seen order.
func NewIdentity(name string, tags ...Tag) Identity {
	subs := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if !slices.Contains(subs, t) {
			subs = append(subs, t)
		}
	}
	return Identity{name: name, subs: subs}
}

// Name returns the client name.
func (id Identity) Name() string {
	return id.name
}

// Subscriptions returns a copy of the subscribed tags.
func (id Identity) Subscriptions() []Tag {
	return slices.Clone(id.subs)
}

// Subscribes reports whether envelopes tagged t should reach the consumer.
func (id Identity) Subscribes(t Tag) bool {
	return slices.Contains(id.subs, t)
}
