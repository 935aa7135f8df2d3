// Package protocol defines the tagged-union envelope exchanged between the worker daemon
// and its controller, plus the codecs that serialize it.
package protocol

import (
	"fmt"
	"strings"
)

// Type is the envelope tag.
type Type string

const (
	TypeExecute  Type = "execute"
	TypeGenerate Type = "generate"
	TypeCollect  Type = "collect"
	TypeTeardown Type = "teardown"
	TypeStop     Type = "stop"

	TypeReady       Type = "ready"
	TypeObject      Type = "object"
	TypeExpand      Type = "expand"
	TypeError       Type = "error"
	TypeHardFailure Type = "hardfailure"
	TypeStats       Type = "stats"
	TypeStatus      Type = "status"
)

// ParseType normalizes a raw tag; unknown tags are returned as-is with ok=false.
func ParseType(raw string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case TypeExecute, TypeGenerate, TypeCollect, TypeTeardown, TypeStop,
		TypeReady, TypeObject, TypeExpand, TypeError, TypeHardFailure, TypeStats, TypeStatus:
		return t, true
	}
	return t, false
}

// Envelope is an outbound message. Payload is one of the payload structs in this package.
type Envelope struct {
	Type    Type `json:"type" msgpack:"type"`
	Payload any  `json:"payload" msgpack:"payload"`
}

// Message is an inbound envelope whose payload has not been decoded yet.
type Message struct {
	Type Type
	raw  []byte
	dec  func(raw []byte, v any) error
}

// NewMessage builds a Message that decodes raw with dec.
func NewMessage(t Type, raw []byte, dec func(raw []byte, v any) error) Message {
	return Message{Type: t, raw: raw, dec: dec}
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (m Message) Decode(v any) error {
	if len(m.raw) == 0 || m.dec == nil {
		return nil
	}
	if err := m.dec(m.raw, v); err != nil {
		return fmt.Errorf("protocol: decode %s payload: %w", m.Type, err)
	}
	return nil
}
