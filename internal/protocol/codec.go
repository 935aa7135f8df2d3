package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes envelopes for a transport.
type Codec interface {
	Name() string
	// Binary reports whether encoded messages are binary (websocket frame choice).
	Binary() bool
	Marshal(env Envelope) ([]byte, error)
	Unmarshal(data []byte) (Message, error)
}

// CodecByName resolves "json" (default) or "msgpack".
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON{}, nil
	case "msgpack", "messagepack":
		return MsgPack{}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown codec %q", name)
	}
}

// JSON encodes envelopes as JSON objects without HTML escaping.
type JSON struct{}

func (JSON) Name() string { return "json" }
func (JSON) Binary() bool { return false }

func (JSON) Marshal(env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", env.Type, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (JSON) Unmarshal(data []byte) (Message, error) {
	var in struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return Message{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	raw := []byte(in.Payload)
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = nil
	}
	return NewMessage(Type(strings.ToLower(strings.TrimSpace(in.Type))), raw, json.Unmarshal), nil
}

// MsgPack encodes envelopes as MessagePack maps.
type MsgPack struct{}

func (MsgPack) Name() string { return "msgpack" }
func (MsgPack) Binary() bool { return true }

func (MsgPack) Marshal(env Envelope) ([]byte, error) {
	b, err := msgpack.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", env.Type, err)
	}
	return b, nil
}

func (MsgPack) Unmarshal(data []byte) (Message, error) {
	var in struct {
		Type    string             `msgpack:"type"`
		Payload msgpack.RawMessage `msgpack:"payload"`
	}
	if err := msgpack.Unmarshal(data, &in); err != nil {
		return Message{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	raw := []byte(in.Payload)
	// 0xc0 is the MessagePack nil marker.
	if len(raw) == 1 && raw[0] == 0xc0 {
		raw = nil
	}
	return NewMessage(Type(strings.ToLower(strings.TrimSpace(in.Type))), raw, msgpack.Unmarshal), nil
}
