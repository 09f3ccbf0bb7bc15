package videostream

import (
	"github.com/tauraamui/tennistrack/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

// Codec is the fourcc every output stream is encoded with.
const Codec = "mp4v"

var (
	ErrReadFrame  = xerror.New("unable to read frame from video stream")
	ErrOpenReader = xerror.New("unable to open video for reading")
	ErrOpenWriter = xerror.New("unable to open video for writing")
)

// Props are read once when a stream is opened. FrameCount is the count
// the container declares, which may be more than can actually be decoded.
type Props struct {
	FPS        float64
	Width      int
	Height     int
	FrameCount int
}

func (p Props) Dimensions() videoframe.Dimensions {
	return videoframe.Dimensions{W: p.Width, H: p.Height}
}

type Reader interface {
	Props() Props
	Read(videoframe.Frame) error
	Close() error
}

type Writer interface {
	Write(videoframe.NoCloser) error
	Close() error
}
