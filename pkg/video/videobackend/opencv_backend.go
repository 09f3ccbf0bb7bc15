package videobackend

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/tauraamui/tennistrack/pkg/video/videoframe"
	"github.com/tauraamui/tennistrack/pkg/video/videostream"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

type openCVFrame struct {
	isClosed bool
	mat      gocv.Mat
}

func (frame *openCVFrame) DataRef() interface{} {
	return &frame.mat
}

func (frame *openCVFrame) Dimensions() videoframe.Dimensions {
	return videoframe.Dimensions{W: frame.mat.Cols(), H: frame.mat.Rows()}
}

func (frame *openCVFrame) Clone() videoframe.Frame {
	return &openCVFrame{mat: frame.mat.Clone()}
}

func (frame *openCVFrame) Close() {
	if !frame.isClosed {
		frame.mat.Close()
		frame.isClosed = true
	}
}

// NewFrameFromMat takes ownership of mat.
func NewFrameFromMat(mat gocv.Mat) videoframe.Frame {
	return &openCVFrame{mat: mat}
}

type openCVBackend struct{}

func (b *openCVBackend) OpenReader(path string) (videostream.Reader, error) {
	vc, err := openVideoCapture(path)
	if err != nil {
		return nil, xerror.Errorf("%s: %s: %w", path, err.Error(), videostream.ErrOpenReader)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, xerror.Errorf("%s: %w", path, videostream.ErrOpenReader)
	}

	return &openCVReader{
		vc:    vc,
		props: readProps(vc),
	}, nil
}

func readProps(vc *gocv.VideoCapture) videostream.Props {
	return videostream.Props{
		FPS:        vc.Get(gocv.VideoCaptureFPS),
		Width:      int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(vc.Get(gocv.VideoCaptureFrameHeight)),
		FrameCount: int(vc.Get(gocv.VideoCaptureFrameCount)),
	}
}

func (b *openCVBackend) OpenWriter(path string, props videostream.Props) (videostream.Writer, error) {
	return openWriter(path, props)
}

func (b *openCVBackend) NewFrame() videoframe.Frame {
	return &openCVFrame{mat: gocv.NewMat()}
}

var openVideoCapture = func(path string) (*gocv.VideoCapture, error) {
	return gocv.VideoCaptureFile(path)
}

var readFromVideoCapture = func(vc *gocv.VideoCapture, mat *gocv.Mat) bool {
	if vc.IsOpened() {
		return vc.Read(mat)
	}
	return false
}

var openVideoWriter = func(filename, codec string, fps float64, width, height int, isColor bool) (*gocv.VideoWriter, error) {
	return gocv.VideoWriterFile(filename, codec, fps, width, height, isColor)
}

func ensureDirectoryPathExists(path string) error {
	err := fs.MkdirAll(path, os.ModePerm|os.ModeDir)
	if err == nil || os.IsExist(err) {
		return nil
	}
	return err
}

type openCVReader struct {
	mu    sync.Mutex
	props videostream.Props
	vc    *gocv.VideoCapture
}

func (r *openCVReader) Props() videostream.Props {
	return r.props
}

func (r *openCVReader) Read(frame videoframe.Frame) error {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return xerror.New("must pass OpenCV frame to OpenCV reader")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok := readFromVideoCapture(r.vc, mat); !ok || mat.Empty() {
		return videostream.ErrReadFrame
	}
	return nil
}

func (r *openCVReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vc.Close()
}

type openCVWriter struct {
	mu         sync.Mutex
	dimensions videoframe.Dimensions
	vw         *gocv.VideoWriter
}

func openWriter(path string, props videostream.Props) (*openCVWriter, error) {
	if props.Dimensions().Empty() {
		return nil, xerror.Errorf("%s: invalid dimensions %dx%d: %w", path, props.Width, props.Height, videostream.ErrOpenWriter)
	}
	if err := ensureDirectoryPathExists(filepath.Dir(path)); err != nil {
		return nil, err
	}

	vw, err := openVideoWriter(path, videostream.Codec, props.FPS, props.Width, props.Height, true)
	if err != nil {
		return nil, xerror.Errorf("%s: %s: %w", path, err.Error(), videostream.ErrOpenWriter)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, xerror.Errorf("%s: %w", path, videostream.ErrOpenWriter)
	}

	return &openCVWriter{dimensions: props.Dimensions(), vw: vw}, nil
}

func (w *openCVWriter) Write(frame videoframe.NoCloser) error {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return xerror.New("must pass OpenCV frame to OpenCV writer")
	}
	if d := frame.Dimensions(); d != w.dimensions {
		return xerror.Errorf(
			"frame dimensions %dx%d do not match output %dx%d", d.W, d.H, w.dimensions.W, w.dimensions.H,
		)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.vw.Write(*mat)
}

func (w *openCVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.vw.Close()
}
