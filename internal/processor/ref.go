package processor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Ref identifies a processor instance on the wire. Two refs name the same cached
// instance only when class, image and args are all equal.
type Ref struct {
	ClassName string         `json:"className" msgpack:"className"`
	Image     string         `json:"image,omitempty" msgpack:"image,omitempty"`
	Args      map[string]any `json:"args,omitempty" msgpack:"args,omitempty"`
}

// Key is the executor cache key. Args are rendered as JSON, which orders map keys.
func (r Ref) Key() string {
	args := "{}"
	if len(r.Args) > 0 {
		if b, err := json.Marshal(r.Args); err == nil {
			args = string(b)
		} else {
			args = fmt.Sprintf("%v", r.Args)
		}
	}
	return strings.TrimSpace(r.ClassName) + "|" + strings.TrimSpace(r.Image) + "|" + args
}

// Validate rejects refs without a class name.
func (r Ref) Validate() error {
	if strings.TrimSpace(r.ClassName) == "" {
		return fmt.Errorf("processor: ref has no className")
	}
	return nil
}

func (r Ref) String() string {
	if r.Image == "" {
		return r.ClassName
	}
	return r.ClassName + "@" + r.Image
}
