package annotate

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/tauraamui/tennistrack/pkg/detect"
	"github.com/tauraamui/tennistrack/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

// Annotator returns a new frame carrying overlays for frame. The input is
// left untouched and the caller owns the returned frame.
type Annotator interface {
	Annotate(frame videoframe.Frame) (videoframe.Frame, error)
}

type Detector interface {
	Detect(frame videoframe.NoCloser) ([]detect.Detection, error)
}

type AnnotatorFunc func(videoframe.Frame) (videoframe.Frame, error)

func (f AnnotatorFunc) Annotate(frame videoframe.Frame) (videoframe.Frame, error) {
	return f(frame)
}

const (
	fontFace      = gocv.FontHersheySimplex
	fontScale     = 0.5
	fontThickness = 1
	boxThickness  = 2
	tagPadding    = 4
)

type DetectionAnnotator struct {
	detector Detector
	palette  Palette
}

func New(detector Detector) *DetectionAnnotator {
	return &DetectionAnnotator{detector: detector, palette: NewPalette(len(detect.CocoLabels))}
}

func (a *DetectionAnnotator) Annotate(frame videoframe.Frame) (videoframe.Frame, error) {
	found, err := a.detector.Detect(frame)
	if err != nil {
		return nil, xerror.Errorf("detection failed: %w", err)
	}

	annotated := frame.Clone()
	mat, ok := annotated.DataRef().(*gocv.Mat)
	if !ok {
		annotated.Close()
		return nil, xerror.New("must pass OpenCV frame to annotator")
	}

	for _, d := range found {
		drawDetection(mat, d, a.palette.For(d.Class))
	}
	return annotated, nil
}

func drawDetection(mat *gocv.Mat, d detect.Detection, c colorful.Color) {
	boxColor := toRGBA(c)
	gocv.Rectangle(mat, d.Box, boxColor, boxThickness)

	text := d.String()
	size := gocv.GetTextSize(text, fontFace, fontScale, fontThickness)

	// tag sits above the box unless that would run off the top edge
	tag := image.Rect(
		d.Box.Min.X, d.Box.Min.Y-size.Y-2*tagPadding,
		d.Box.Min.X+size.X+2*tagPadding, d.Box.Min.Y,
	)
	if tag.Min.Y < 0 {
		tag = tag.Add(image.Pt(0, tag.Dy()))
	}
	gocv.Rectangle(mat, tag, boxColor, -1)
	gocv.PutText(
		mat, text, image.Pt(tag.Min.X+tagPadding, tag.Max.Y-tagPadding),
		fontFace, fontScale, textColorOn(c), fontThickness,
	)
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func textColorOn(c colorful.Color) color.RGBA {
	if l, _, _ := c.Lab(); l > 0.6 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: 255, G: 255, B: 255, A: 255}
}
