package asset

// Clip describes a sub-range of an asset (a page, a time segment, a scene).
type Clip struct {
	Type     string  `json:"type" msgpack:"type"`
	Start    float64 `json:"start" msgpack:"start"`
	Stop     float64 `json:"stop" msgpack:"stop"`
	Timeline string  `json:"timeline,omitempty" msgpack:"timeline,omitempty"`
	Track    string  `json:"track,omitempty" msgpack:"track,omitempty"`
}

// Frame binds one asset to one processor invocation. The asset is shared, not copied.
type Frame struct {
	Asset *Asset
	Skip  bool
	Clip  *Clip
}

// NewFrame wraps a for one invocation. Clip is filled from the asset's clip attributes
// when it was produced by a clip expansion.
func NewFrame(a *Asset) *Frame {
	return &Frame{Asset: a, Clip: ClipOf(a)}
}

// ClipOf reads the clip descriptor stored under "clip", or nil when a is not a clip.
func ClipOf(a *Asset) *Clip {
	if a == nil {
		return nil
	}
	typ := a.AttrString("clip.type")
	if typ == "" {
		return nil
	}
	c := &Clip{
		Type:     typ,
		Timeline: a.AttrString("clip.timeline"),
		Track:    a.AttrString("clip.track"),
	}
	c.Start, _ = a.AttrFloat("clip.start")
	c.Stop, _ = a.AttrFloat("clip.stop")
	return c
}

// ExpandFrame is a unit of follow-on work produced while processing a frame.
type ExpandFrame struct {
	Asset *Asset
}

// NewExpandFrame builds a work item for path with overlay applied to the new asset's own
// document. Overlay keys are dot paths.
func NewExpandFrame(path string, overlay map[string]any) (ExpandFrame, error) {
	a := FromPath(path)
	for k, v := range overlay {
		if err := a.SetAttr(k, v); err != nil {
			return ExpandFrame{}, err
		}
	}
	return ExpandFrame{Asset: a}, nil
}

// NewClipExpandFrame builds a work item over a clip of the parent's source file. The clip
// gets its own ID derived from the source path and clip range.
func NewClipExpandFrame(parent *Asset, clip Clip, inherit ...string) (ExpandFrame, error) {
	src := parent.AttrString("source.path")
	a := New(IDFromPath(src + "#" + clip.Type + ":" + formatRange(clip.Start, clip.Stop)))
	for _, key := range append([]string{"source"}, inherit...) {
		if v, ok := parent.Attr(key); ok {
			if err := a.SetAttr(key, deepCopy(v)); err != nil {
				return ExpandFrame{}, err
			}
		}
	}
	if err := a.SetAttr("clip", map[string]any{
		"type":     clip.Type,
		"start":    clip.Start,
		"stop":     clip.Stop,
		"length":   clip.Stop - clip.Start,
		"timeline": clip.Timeline,
		"track":    clip.Track,
		"sourceId": parent.ID(),
	}); err != nil {
		return ExpandFrame{}, err
	}
	return ExpandFrame{Asset: a}, nil
}

// Inherit copies the parent's attributes at keys onto the expand item, leaving any value
// already present untouched.
func (e ExpandFrame) Inherit(parent *Asset, keys ...string) error {
	for _, key := range keys {
		if e.Asset.AttrExists(key) {
			continue
		}
		if v, ok := parent.Attr(key); ok {
			if err := e.Asset.SetAttr(key, deepCopy(v)); err != nil {
				return err
			}
		}
	}
	return nil
}
