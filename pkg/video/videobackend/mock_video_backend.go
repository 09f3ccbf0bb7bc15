package videobackend

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/tauraamui/tennistrack/pkg/video/videoframe"
	"github.com/tauraamui/tennistrack/pkg/video/videostream"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

var MockProps = videostream.Props{FPS: 30, Width: 480, Height: 270, FrameCount: 30}

type mockVideoBackend struct {
	props videostream.Props
}

func (b *mockVideoBackend) OpenReader(path string) (videostream.Reader, error) {
	return &mockVideoReader{props: b.props, source: path}, nil
}

func (b *mockVideoBackend) OpenWriter(path string, props videostream.Props) (videostream.Writer, error) {
	return openWriter(path, props)
}

func (b *mockVideoBackend) NewFrame() videoframe.Frame {
	return &openCVFrame{mat: gocv.NewMat()}
}

type mockVideoReader struct {
	props                   videostream.Props
	source                  string
	readIndex               int
	renderedBaseFrameCanvas bool
	baseFrameCanvas         image.Image
}

func (r *mockVideoReader) Props() videostream.Props {
	return r.props
}

func (r *mockVideoReader) Read(frame videoframe.Frame) error {
	frameMatRef, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return xerror.New("must pass OpenCV frame to mock video reader")
	}

	if r.readIndex >= r.props.FrameCount {
		return videostream.ErrReadFrame
	}

	if !r.renderedBaseFrameCanvas {
		r.baseFrameCanvas = renderBaseFrameCanvas(r.props.Width, r.props.Height)
		r.renderedBaseFrameCanvas = true
	}

	img, err := drawTextLayerOntoBaseFrameClone(r.baseFrameCanvas, r.readIndex)
	if err != nil {
		return err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return xerror.Errorf("unable to convert Go image into OpenCV mat: %w", err)
	}
	defer mat.Close()

	mat.CopyTo(frameMatRef)
	r.readIndex++

	return nil
}

func (r *mockVideoReader) Close() error {
	r.renderedBaseFrameCanvas = false
	r.baseFrameCanvas = nil
	return nil
}

func drawTextLayerOntoBaseFrameClone(base image.Image, index int) (image.Image, error) {
	baseClone := cloneImage(base)
	if err := drawText(baseClone, 10, 40, "TT_TEST_CARD"); err != nil {
		return nil, xerror.Errorf("unable to draw text onto in-mem image for test card: %w", err)
	}
	if err := drawText(baseClone, 10, 90, fmt.Sprintf("frame %04d", index)); err != nil {
		return nil, xerror.Errorf("unable to draw text onto in-mem image for test card: %w", err)
	}
	return baseClone, nil
}

var (
	courtGreen = color.RGBA{R: 56, G: 118, B: 62, A: 255}
	lineWhite  = color.RGBA{R: 240, G: 240, B: 240, A: 255}
)

// renderBaseFrameCanvas paints a top-down court: green surface, outer
// boundary, net line and the two service lines.
func renderBaseFrameCanvas(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: courtGreen}, image.Point{}, draw.Src)

	mx, my := w/10, h/8
	court := image.Rect(mx, my, w-mx, h-my)
	strokeRect(img, court, 2)

	midX := (court.Min.X + court.Max.X) / 2
	fillRect(img, image.Rect(midX-1, court.Min.Y, midX+1, court.Max.Y))

	serviceOffset := court.Dx() / 4
	for _, x := range []int{midX - serviceOffset, midX + serviceOffset} {
		fillRect(img, image.Rect(x-1, court.Min.Y, x+1, court.Max.Y))
	}
	return img
}

func strokeRect(img *image.RGBA, r image.Rectangle, t int) {
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t))
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y))
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y))
	fillRect(img, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y))
}

func fillRect(img *image.RGBA, r image.Rectangle) {
	draw.Draw(img, r, &image.Uniform{C: lineWhite}, image.Point{}, draw.Src)
}

func cloneImage(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

func drawText(canvas *image.RGBA, x, y int, text string) error {
	var (
		fgColor  image.Image
		fontFace *truetype.Font
		err      error
		fontSize = 28.0
	)
	fgColor = image.White
	fontFace, err = freetype.ParseFont(goregular.TTF)
	if err != nil {
		return err
	}
	fontDrawer := &font.Drawer{
		Dst: canvas,
		Src: fgColor,
		Face: truetype.NewFace(fontFace, &truetype.Options{
			Size:    fontSize,
			Hinting: font.HintingFull,
		}),
	}
	fontDrawer.Dot = fixed.Point26_6{
		X: fixed.I(x),
		Y: fixed.I(y),
	}
	fontDrawer.DrawString(text)
	return nil
}
