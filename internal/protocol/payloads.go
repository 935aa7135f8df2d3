package protocol

import (
	"mediaflow/internal/asset"
	"mediaflow/internal/processor"
)

// ExecutePayload runs a transform over one asset, or over a batch when Objects is set.
type ExecutePayload struct {
	Ref     processor.Ref   `json:"ref" msgpack:"ref"`
	Object  *asset.Wire     `json:"object,omitempty" msgpack:"object,omitempty"`
	Objects []asset.Wire    `json:"objects,omitempty" msgpack:"objects,omitempty"`
	Execute []processor.Ref `json:"execute,omitempty" msgpack:"execute,omitempty"`
}

// Assets returns the single object followed by the batch, in order.
func (p ExecutePayload) Assets() []asset.Wire {
	out := make([]asset.Wire, 0, len(p.Objects)+1)
	if p.Object != nil {
		out = append(out, *p.Object)
	}
	return append(out, p.Objects...)
}

type GeneratePayload struct {
	Ref     processor.Ref   `json:"ref" msgpack:"ref"`
	Execute []processor.Ref `json:"execute,omitempty" msgpack:"execute,omitempty"`
}

type CollectPayload struct {
	Ref     processor.Ref `json:"ref" msgpack:"ref"`
	Objects []asset.Wire  `json:"objects" msgpack:"objects"`
}

type TeardownPayload struct {
	Ref processor.Ref `json:"ref" msgpack:"ref"`
}

type StopPayload struct {
	Status int `json:"status" msgpack:"status"`
}

type ReadyPayload struct {
	PID   int    `json:"pid" msgpack:"pid"`
	Codec string `json:"codec" msgpack:"codec"`
}

type ObjectPayload struct {
	Object asset.Wire `json:"object" msgpack:"object"`
	Skip   bool       `json:"skip,omitempty" msgpack:"skip,omitempty"`
}

type ExpandPayload struct {
	Execute []processor.Ref `json:"execute" msgpack:"execute"`
	Assets  []asset.Wire    `json:"assets" msgpack:"assets"`
}

type ErrorPayload struct {
	Message   string `json:"message" msgpack:"message"`
	Processor string `json:"processor" msgpack:"processor"`
	Path      string `json:"path,omitempty" msgpack:"path,omitempty"`
	Fatal     bool   `json:"fatal" msgpack:"fatal"`
	ID        string `json:"id,omitempty" msgpack:"id,omitempty"`
}

type HardFailurePayload struct {
	Message string `json:"message" msgpack:"message"`
}

type StatsPayload struct {
	Processor string  `json:"processor" msgpack:"processor"`
	Image     string  `json:"image,omitempty" msgpack:"image,omitempty"`
	Count     int64   `json:"count" msgpack:"count"`
	Errors    int64   `json:"errors" msgpack:"errors"`
	MinMS     float64 `json:"minMs" msgpack:"minMs"`
	AvgMS     float64 `json:"avgMs" msgpack:"avgMs"`
	MaxMS     float64 `json:"maxMs" msgpack:"maxMs"`
}

type StatusPayload struct {
	Message string `json:"message" msgpack:"message"`
}
