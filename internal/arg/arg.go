package arg

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMissingRequired is wrapped by every MissingError.
var ErrMissingRequired = errors.New("required argument missing")

// MissingError reports a declared-required argument absent after the merge.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("arg: %s: %v", e.Name, ErrMissingRequired)
}

func (e *MissingError) Unwrap() error { return ErrMissingRequired }

// Argument is a declared configuration slot on a processor.
type Argument struct {
	Name     string
	Kind     Kind
	Default  any
	Required bool
	Doc      string
}

// New declares an optional argument with no default.
func New(name string, kind Kind) Argument {
	return Argument{Name: name, Kind: kind}
}

func (a Argument) WithDefault(v any) Argument {
	a.Default = v
	return a
}

func (a Argument) Require() Argument {
	a.Required = true
	return a
}

func (a Argument) Describe(doc string) Argument {
	a.Doc = doc
	return a
}

// Config is a resolved processor configuration.
type Config struct {
	names  []string
	values map[string]Value
}

// Resolve overlays caller values onto the declared defaults. Unknown caller keys are kept
// as Any values without validation.
func Resolve(declared []Argument, overlay map[string]any) (Config, error) {
	cfg := Config{values: make(map[string]Value, len(declared)+len(overlay))}
	known := make(map[string]struct{}, len(declared))
	for _, a := range declared {
		known[a.Name] = struct{}{}
		cfg.names = append(cfg.names, a.Name)

		raw, supplied := overlay[a.Name]
		if !supplied || raw == nil {
			raw = a.Default
		}
		if raw == nil {
			if a.Required {
				return Config{}, &MissingError{Name: a.Name}
			}
			cfg.values[a.Name] = Value{kind: a.Kind}
			continue
		}
		v, err := Coerce(a.Kind, raw)
		if err != nil {
			var ce *CoercionError
			if errors.As(err, &ce) {
				ce.Name = a.Name
			}
			return Config{}, err
		}
		cfg.values[a.Name] = v
	}
	extra := make([]string, 0, len(overlay))
	for name := range overlay {
		if _, ok := known[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		cfg.names = append(cfg.names, name)
		cfg.values[name] = Value{kind: KindAny, raw: overlay[name]}
	}
	return cfg, nil
}

// Names returns declared names in declaration order followed by unknown caller keys in
// sorted order.
func (c Config) Names() []string {
	return append([]string(nil), c.names...)
}

func (c Config) Value(name string) (Value, bool) {
	v, ok := c.values[name]
	return v, ok
}

// ArgValue returns the raw resolved value or nil.
func (c Config) ArgValue(name string) any {
	return c.values[name].Raw()
}

func (c Config) String(name string) string { return c.values[name].String() }
func (c Config) Int(name string) int64 { return c.values[name].Int() }
func (c Config) Float(name string) float64 { return c.values[name].Float() }
func (c Config) Bool(name string) bool { return c.values[name].Bool() }
func (c Config) List(name string) []any { return c.values[name].List() }
func (c Config) Strings(name string) []string { return c.values[name].Strings() }
func (c Config) Map(name string) map[string]any { return c.values[name].Map() }
