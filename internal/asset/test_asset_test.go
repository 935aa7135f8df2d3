package asset

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAttrCreatesIntermediateMaps(t *testing.T) {
	a := New("abc")
	require.False(t, a.Dirty())

	require.NoError(t, a.SetAttr("media.dimensions.width", 1920))
	assert.True(t, a.Dirty())

	w, ok := a.AttrInt("media.dimensions.width")
	require.True(t, ok)
	assert.EqualValues(t, 1920, w)

	dims, ok := a.Attr("media.dimensions")
	require.True(t, ok)
	assert.IsType(t, map[string]any{}, dims)
}

func TestGetAttrMissingReturnsNil(t *testing.T) {
	a := New("abc")
	assert.Nil(t, a.GetAttr("nope.nothing"))
	assert.False(t, a.AttrExists("nope"))
	assert.Equal(t, "", a.AttrString("nope"))
}

func TestSetAttrThroughScalarFails(t *testing.T) {
	a := New("abc")
	require.NoError(t, a.SetAttr("media", "scalar"))
	assert.Error(t, a.SetAttr("media.width", 10))
	assert.Error(t, a.SetAttr("media..width", 10))
}

func TestDelAttr(t *testing.T) {
	a := New("abc")
	require.NoError(t, a.SetAttr("foo.bar", 1))
	a.ClearDirty()

	assert.False(t, a.DelAttr("foo.baz"))
	assert.False(t, a.Dirty())
	assert.True(t, a.DelAttr("foo.bar"))
	assert.True(t, a.Dirty())
	assert.False(t, a.AttrExists("foo.bar"))
}

func TestExtendList(t *testing.T) {
	a := New("abc")
	require.NoError(t, a.ExtendList("tags", "cat"))
	require.NoError(t, a.ExtendList("tags", "dog", "bird"))
	assert.Equal(t, []any{"cat", "dog", "bird"}, a.GetAttr("tags"))

	require.NoError(t, a.SetAttr("name", "x"))
	assert.Error(t, a.ExtendList("name", "y"))
}

func TestFromPathIsStable(t *testing.T) {
	a := FromPath("s3://bucket/dir/Photo.JPG")
	b := FromPath("s3://bucket/dir/Photo.JPG")
	assert.Equal(t, a.ID(), b.ID())
	assert.Equal(t, "Photo.JPG", a.AttrString("source.filename"))
	assert.Equal(t, "jpg", a.AttrString("source.extension"))
	assert.NotEqual(t, a.ID(), FromPath("s3://bucket/dir/other.jpg").ID())
}

func TestWireRoundTripNormalizesNumbers(t *testing.T) {
	a := New("abc")
	require.NoError(t, a.SetAttr("foo.bar", 1))
	a.AddError(AssetError{Processor: "p", Message: "boom"})

	raw, err := json.Marshal(a.ToWire())
	require.NoError(t, err)

	var w Wire
	require.NoError(t, json.Unmarshal(raw, &w))
	back, err := FromWire(w)
	require.NoError(t, err)

	v, ok := back.AttrInt("foo.bar")
	require.True(t, ok)
	assert.EqualValues(t, 1, v)
	assert.Len(t, back.Errors(), 1)
	assert.False(t, back.Dirty())

	_, err = FromWire(Wire{})
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	a := New("abc")
	require.NoError(t, a.SetAttr("foo.bar", 1))
	c := a.Clone()
	require.NoError(t, c.SetAttr("foo.bar", 2))

	v, _ := a.AttrInt("foo.bar")
	assert.EqualValues(t, 1, v)
	assert.Equal(t, a.ID(), c.ID())
}

func TestExpandFrameOverlayAndInherit(t *testing.T) {
	parent := FromPath("/data/video.mp4")
	require.NoError(t, parent.SetAttr("media.type", "video"))

	ef, err := NewExpandFrame("/data/video_frame1.jpg", map[string]any{"media.pageNumber": 1})
	require.NoError(t, err)
	require.NoError(t, ef.Inherit(parent, "media.type", "missing.key"))

	n, ok := ef.Asset.AttrInt("media.pageNumber")
	require.True(t, ok)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, "video", ef.Asset.AttrString("media.type"))
	assert.Equal(t, "/data/video_frame1.jpg", ef.Asset.AttrString("source.path"))
}

func TestClipExpandFrameHasDistinctIDs(t *testing.T) {
	parent := FromPath("/data/doc.pdf")
	p1, err := NewClipExpandFrame(parent, Clip{Type: "page", Start: 1, Stop: 1})
	require.NoError(t, err)
	p2, err := NewClipExpandFrame(parent, Clip{Type: "page", Start: 2, Stop: 2})
	require.NoError(t, err)

	assert.NotEqual(t, p1.Asset.ID(), p2.Asset.ID())
	assert.Equal(t, "/data/doc.pdf", p1.Asset.AttrString("source.path"))
	assert.Equal(t, parent.ID(), p2.Asset.AttrString("clip.sourceId"))
}

func TestClipOfReadsClipAttributes(t *testing.T) {
	assert.Nil(t, ClipOf(nil))
	assert.Nil(t, ClipOf(FromPath("/data/doc.pdf")))
	assert.Nil(t, NewFrame(FromPath("/data/doc.pdf")).Clip)

	parent := FromPath("/data/doc.pdf")
	ef, err := NewClipExpandFrame(parent, Clip{Type: "page", Start: 2, Stop: 3, Timeline: "full"})
	require.NoError(t, err)

	// The descriptor survives the trip to the controller and back.
	back, err := FromWire(ef.Asset.ToWire())
	require.NoError(t, err)
	frame := NewFrame(back)
	require.NotNil(t, frame.Clip)
	assert.Equal(t, Clip{Type: "page", Start: 2, Stop: 3, Timeline: "full"}, *frame.Clip)
}

func TestLargeUnsignedStaysPositive(t *testing.T) {
	a := New("u")
	require.NoError(t, a.SetAttr("big", uint64(math.MaxUint64)))
	require.NoError(t, a.SetAttr("small", uint64(42)))

	big, ok := a.AttrFloat("big")
	require.True(t, ok)
	assert.Greater(t, big, float64(math.MaxInt64))
	small, ok := a.AttrInt("small")
	require.True(t, ok)
	assert.EqualValues(t, 42, small)
}
