package detect

import (
	"image"
	"testing"

	"github.com/matryer/is"
)

func hdParams() decodeParams {
	return decodeParams{
		scaleX:        1280.0 / 640.0,
		scaleY:        720.0 / 640.0,
		bounds:        image.Rect(0, 0, 1280, 720),
		minConfidence: 0.25,
		labels:        CocoLabels,
	}
}

func TestDecodeChannelsFirstScalesToFrame(t *testing.T) {
	is := is.New(t)

	data := []float32{
		320, 330, 100, // cx
		320, 320, 100, // cy
		64, 64, 20, // w
		64, 64, 20, // h
		0.9, 0.8, 0.05, // person
		0.1, 0.1, 0.1, // bicycle
	}

	found, err := decode(data, []int{1, 6, 3}, hdParams())
	is.NoErr(err)
	is.Equal(len(found), 2)

	is.Equal(found[0].Class, 0)
	is.Equal(found[0].Label, "person")
	is.Equal(found[0].Confidence, float32(0.9))
	is.Equal(found[0].Box, image.Rect(576, 324, 704, 396))
}

func TestDecodeTransposedLayout(t *testing.T) {
	is := is.New(t)

	const attrs, anchors = 6, 8
	data := make([]float32, attrs*anchors)
	// anchor 3 only, row major
	copy(data[3*attrs:], []float32{100, 100, 40, 40, 0.1, 0.7})

	found, err := decode(data, []int{1, anchors, attrs}, decodeParams{
		scaleX: 1, scaleY: 1, bounds: image.Rect(0, 0, 640, 640), minConfidence: 0.25, labels: CocoLabels,
	})
	is.NoErr(err)
	is.Equal(len(found), 1)
	is.Equal(found[0].Label, "bicycle")
	is.Equal(found[0].Box, image.Rect(80, 80, 120, 120))
}

func TestDecodeClipsBoxesToFrame(t *testing.T) {
	is := is.New(t)

	const attrs, anchors = 5, 6
	data := make([]float32, attrs*anchors)
	for attr, v := range []float32{5, 5, 40, 40, 0.6} {
		data[attr*anchors] = v
	}
	found, err := decode(data, []int{1, attrs, anchors}, decodeParams{
		scaleX: 1, scaleY: 1, bounds: image.Rect(0, 0, 100, 100), minConfidence: 0.25,
	})
	is.NoErr(err)
	is.Equal(len(found), 1)
	is.Equal(found[0].Box, image.Rect(0, 0, 25, 25))
	is.Equal(found[0].Label, "class 0")
}

func TestDecodeRejectsBadShapes(t *testing.T) {
	is := is.New(t)

	_, err := decode(nil, []int{8400}, hdParams())
	is.True(err != nil)

	_, err = decode(make([]float32, 4), []int{1, 4, 1}, hdParams())
	is.True(err != nil)

	_, err = decode(make([]float32, 10), []int{1, 84, 8400}, hdParams())
	is.True(err != nil)
}

func TestSuppressDropsOverlappingSameClass(t *testing.T) {
	is := is.New(t)

	dets := []Detection{
		{Class: 0, Confidence: 0.8, Box: image.Rect(596, 324, 724, 396)},
		{Class: 0, Confidence: 0.9, Box: image.Rect(576, 324, 704, 396)},
		{Class: 38, Confidence: 0.5, Box: image.Rect(580, 330, 700, 390)},
		{Class: 0, Confidence: 0.4, Box: image.Rect(10, 10, 50, 50)},
	}

	kept := suppress(dets, 0.45)
	is.Equal(len(kept), 3)
	is.Equal(kept[0].Confidence, float32(0.9))
	is.Equal(kept[1].Class, 38)
	is.Equal(kept[2].Box, image.Rect(10, 10, 50, 50))
}

func TestIOU(t *testing.T) {
	is := is.New(t)

	a := image.Rect(0, 0, 10, 10)
	is.Equal(iou(a, a), float32(1))
	is.Equal(iou(a, image.Rect(20, 20, 30, 30)), float32(0))
	is.Equal(iou(a, image.Rect(5, 0, 15, 10)), float32(50)/float32(150))
}

func TestOptionsDefaults(t *testing.T) {
	is := is.New(t)

	o := Options{}.withDefaults()
	is.Equal(o.InputSize, 640)
	is.Equal(o.Confidence, float32(0.25))
	is.Equal(o.NMS, float32(0.45))
	is.Equal(len(o.Labels), 80)
}
