package detection

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_AllowListExample(t *testing.T) {
	t.Parallel()

	dets := []Detection{
		{Label: "cup", Confidence: 0.9},
		{Label: "mug", Confidence: 0.95},
	}

	got := Filter(dets, 0.4, NewLabelSet("cup"))
	require.Len(t, got, 1)
	assert.Equal(t, "cup", got[0].Label)
}

func TestFilter(t *testing.T) {
	t.Parallel()

	dets := []Detection{
		{BBox: BBox{0, 0, 10, 10}, Label: "cup", Confidence: 0.39},
		{BBox: BBox{1, 1, 11, 11}, Label: "cup", Confidence: 0.4},
		{BBox: BBox{2, 2, 12, 12}, Label: "Cup", Confidence: 0.8},
		{BBox: BBox{3, 3, 13, 13}, Label: "bottle", Confidence: 0.7},
		{BBox: BBox{4, 4, 14, 14}, Label: "cup", Confidence: 1.0},
	}

	tests := []struct {
		name      string
		threshold float64
		allowed   LabelSet
		want      []Detection
	}{
		{
			name:      "threshold is inclusive and order is preserved",
			threshold: 0.4,
			allowed:   nil,
			want:      dets[1:],
		},
		{
			name:      "labels match case-sensitively",
			threshold: 0.0,
			allowed:   NewLabelSet("cup"),
			want:      []Detection{dets[0], dets[1], dets[4]},
		},
		{
			name:      "both criteria must hold",
			threshold: 0.75,
			allowed:   NewLabelSet("cup", "bottle"),
			want:      []Detection{dets[4]},
		},
		{
			name:      "empty allow-list set admits nothing",
			threshold: 0,
			allowed:   LabelSet{},
			want:      []Detection{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Filter(dets, tt.threshold, tt.allowed)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilter_EmptyInput(t *testing.T) {
	t.Parallel()

	got := Filter(nil, 0.5, nil)
	require.NotNil(t, got)
	assert.Empty(t, got)

	objs := FilterObjects(nil, 0.5, NewLabelSet("cup"))
	require.NotNil(t, objs)
	assert.Empty(t, objs)
}

func TestFilterObjects_KeepsIdentity(t *testing.T) {
	t.Parallel()

	objs := []Object{
		{Detection: Detection{Label: "cup", Confidence: 0.9}, TrackID: 7, Tracked: true},
		{Detection: Detection{Label: "cup", Confidence: 0.1}, TrackID: 8, Tracked: true},
	}
	got := FilterObjects(objs, 0.4, nil)
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].TrackID)
	assert.True(t, got[0].Tracked)
}

func TestNewLabelSet(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewLabelSet())
	assert.True(t, NewLabelSet().Allows("anything"))

	s := NewLabelSet("cup", "bottle", "cup")
	assert.Equal(t, []string{"bottle", "cup"}, s.Labels())
	assert.False(t, s.Allows("mug"))
}

func TestBBox(t *testing.T) {
	t.Parallel()

	a := BBox{0, 0, 10, 10}
	b := BBox{5, 0, 15, 10}

	assert.Equal(t, 100.0, a.Area())
	assert.InDelta(t, 50.0/150.0, a.IoU(b), 1e-9)
	assert.Equal(t, 1.0, a.IoU(a))
	assert.Equal(t, 0.0, a.IoU(BBox{20, 20, 30, 30}))

	assert.True(t, a.Valid())
	assert.False(t, BBox{10, 0, 0, 10}.Valid())
	assert.False(t, BBox{0, 0, math.NaN(), 10}.Valid())
	assert.Equal(t, 0.0, BBox{10, 0, 0, 10}.Area())
}

func TestUntracked(t *testing.T) {
	t.Parallel()

	objs := Untracked([]Detection{{Label: "cup"}, {Label: "can"}})
	require.Len(t, objs, 2)
	for _, o := range objs {
		assert.False(t, o.Tracked)
	}
}
