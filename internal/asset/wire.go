package asset

import (
	"fmt"
	"strconv"
)

// Wire is the serialized form of an asset carried inside protocol payloads.
type Wire struct {
	ID       string         `json:"id" msgpack:"id"`
	Document map[string]any `json:"document" msgpack:"document"`
	Errors   []AssetError   `json:"errors,omitempty" msgpack:"errors,omitempty"`
}

// ToWire snapshots the asset for a payload.
func (a *Asset) ToWire() Wire {
	return Wire{
		ID:       a.id,
		Document: a.Document(),
		Errors:   a.Errors(),
	}
}

// FromWire rebuilds an asset. The result starts clean.
func FromWire(w Wire) (*Asset, error) {
	if w.ID == "" {
		return nil, fmt.Errorf("asset: wire object has no id")
	}
	a := New(w.ID)
	if w.Document != nil {
		a.doc = normalize(w.Document).(map[string]any)
	}
	a.errs = append(a.errs, w.Errors...)
	return a, nil
}

func formatRange(start, stop float64) string {
	return strconv.FormatFloat(start, 'f', -1, 64) + "-" + strconv.FormatFloat(stop, 'f', -1, 64)
}
