package videobackend

import (
	"github.com/spf13/afero"
	"github.com/tauraamui/tennistrack/pkg/video/videoframe"
	"github.com/tauraamui/tennistrack/pkg/video/videostream"
)

var fs = afero.NewOsFs()

type Backend interface {
	OpenReader(path string) (videostream.Reader, error)
	OpenWriter(path string, props videostream.Props) (videostream.Writer, error)
	NewFrame() videoframe.Frame
}

func Default() Backend {
	return OpenCV()
}

func OpenCV() Backend {
	return &openCVBackend{}
}

// Mock decodes nothing: every opened reader yields a fixed run of
// synthetic test card frames. Output is still encoded with OpenCV.
func Mock() Backend {
	return &mockVideoBackend{props: MockProps}
}

func Resolve(t string) Backend {
	switch t {
	case "mock":
		return Mock()
	default:
		return Default()
	}
}
