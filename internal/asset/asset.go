package asset

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// idNamespace scopes path-derived asset IDs so the same path always maps to the same ID.
var idNamespace = uuid.MustParse("7f1c4a52-8d3e-4b1a-9a57-2f6f0c3d9e11")

// AssetError is a failure recorded against an asset by a processor.
type AssetError struct {
	Processor string `json:"processor" msgpack:"processor"`
	Message   string `json:"message" msgpack:"message"`
	Fatal     bool   `json:"fatal" msgpack:"fatal"`
}

// Asset is a mutable tree-shaped document addressed by dot paths.
// The ID never changes after construction.
type Asset struct {
	id string

	mu    sync.RWMutex
	doc   map[string]any
	errs  []AssetError
	dirty bool
}

// New returns an empty asset with the given ID.
func New(id string) *Asset {
	return &Asset{
		id:  strings.TrimSpace(id),
		doc: make(map[string]any),
	}
}

// IDFromPath derives a stable asset ID from a file or object path.
func IDFromPath(path string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.TrimSpace(path))).String()
}

// FromPath builds an asset for path with the basic source.* attributes populated.
func FromPath(path string) *Asset {
	path = strings.TrimSpace(path)
	a := New(IDFromPath(path))
	base := filepath.Base(path)
	if strings.Contains(path, "://") {
		base = path[strings.LastIndex(path, "/")+1:]
	}
	_ = a.SetAttr("source.path", path)
	_ = a.SetAttr("source.filename", base)
	_ = a.SetAttr("source.extension", strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), "."))
	return a
}

// ID returns the immutable asset id.
func (a *Asset) ID() string {
	return a.id
}

// Attr returns the value at path and whether it exists.
func (a *Asset) Attr(path string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return lookup(a.doc, path)
}

// GetAttr returns the value at path or nil when missing.
func (a *Asset) GetAttr(path string) any {
	v, _ := a.Attr(path)
	return v
}

// AttrExists reports whether path resolves to a value.
func (a *Asset) AttrExists(path string) bool {
	_, ok := a.Attr(path)
	return ok
}

// SetAttr stores v at path, creating intermediate maps as needed.
func (a *Asset) SetAttr(path string, v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := assign(a.doc, path, normalize(v)); err != nil {
		return err
	}
	a.dirty = true
	return nil
}

// DelAttr removes the value at path and reports whether anything was removed.
func (a *Asset) DelAttr(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if remove(a.doc, path) {
		a.dirty = true
		return true
	}
	return false
}

// ExtendList appends values to the list stored at path.
func (a *Asset) ExtendList(path string, values ...any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, ok := lookup(a.doc, path)
	var list []any
	if ok && cur != nil {
		existing, isList := cur.([]any)
		if !isList {
			return fmt.Errorf("asset: attribute %q is not a list", path)
		}
		list = append(list, existing...)
	}
	for _, v := range values {
		list = append(list, normalize(v))
	}
	if err := assign(a.doc, path, list); err != nil {
		return err
	}
	a.dirty = true
	return nil
}

// AttrString returns the attribute formatted as a string, or "" when absent.
func (a *Asset) AttrString(path string) string {
	switch v := a.GetAttr(path).(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// AttrInt returns the attribute as an int64; ok is false when it is not numeric.
func (a *Asset) AttrInt(path string) (int64, bool) {
	switch v := a.GetAttr(path).(type) {
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// AttrFloat returns a numeric attribute as float64; ok is false when it is not numeric.
func (a *Asset) AttrFloat(path string) (float64, bool) {
	switch v := a.GetAttr(path).(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// Dirty reports whether the document changed since construction or the last ClearDirty.
func (a *Asset) Dirty() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dirty
}

// ClearDirty resets the dirty flag.
func (a *Asset) ClearDirty() {
	a.mu.Lock()
	a.dirty = false
	a.mu.Unlock()
}

// AddError attaches a processing error to the asset.
func (a *Asset) AddError(e AssetError) {
	a.mu.Lock()
	a.errs = append(a.errs, e)
	a.mu.Unlock()
}

// Errors returns a copy of the failures recorded against the asset.
func (a *Asset) Errors() []AssetError {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]AssetError(nil), a.errs...)
}

// Document returns a deep copy of the underlying document.
func (a *Asset) Document() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return deepCopyMap(a.doc)
}

// Clone returns an independent copy with the same ID.
func (a *Asset) Clone() *Asset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return &Asset{
		id:    a.id,
		doc:   deepCopyMap(a.doc),
		errs:  append([]AssetError(nil), a.errs...),
		dirty: a.dirty,
	}
}
