package detect

import (
	"image"
	"sync"

	"github.com/tauraamui/tennistrack/pkg/log"
	"github.com/tauraamui/tennistrack/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

var ErrModelLoad = xerror.New("unable to load detection model")

type Options struct {
	InputSize  int
	Confidence float32
	NMS        float32
	// Target names the DNN target, "cpu", "cuda", "fp16" etc.
	Target string
	Labels []string
}

func (o Options) withDefaults() Options {
	if o.InputSize <= 0 {
		o.InputSize = 640
	}
	if o.Confidence <= 0 {
		o.Confidence = 0.25
	}
	if o.NMS <= 0 {
		o.NMS = 0.45
	}
	if len(o.Labels) == 0 {
		o.Labels = CocoLabels
	}
	return o
}

// Net wraps an OpenCV DNN network. Forward passes are serialised since
// the underlying network is not safe for concurrent use.
type Net struct {
	mu   sync.Mutex
	net  gocv.Net
	opts Options
}

var readNet = func(path string) gocv.Net {
	return gocv.ReadNet(path, "")
}

func Load(path string, opts Options) (*Net, error) {
	opts = opts.withDefaults()

	net := readNet(path)
	if net.Empty() {
		net.Close()
		return nil, xerror.Errorf("%s: %w", path, ErrModelLoad)
	}

	if err := preferTarget(&net, opts.Target); err != nil {
		net.Close()
		return nil, xerror.Errorf("%s: %w: %w", path, ErrModelLoad, err)
	}

	log.Info("Loaded detection model: %s (input %dx%d, target %s)", path, opts.InputSize, opts.InputSize, opts.Target)
	return &Net{net: net, opts: opts}, nil
}

type preferer interface {
	SetPreferableBackend(gocv.NetBackendType) error
	SetPreferableTarget(gocv.NetTargetType) error
}

func preferTarget(net preferer, name string) error {
	target := gocv.ParseNetTarget(name)
	backend := gocv.NetBackendDefault
	if target == gocv.NetTargetCUDA || target == gocv.NetTargetCUDAFP16 {
		backend = gocv.NetBackendCUDA
	}
	if err := net.SetPreferableBackend(backend); err != nil {
		return xerror.Errorf("unable to set backend for target %q: %w", name, err)
	}
	if err := net.SetPreferableTarget(target); err != nil {
		return xerror.Errorf("unable to set target %q: %w", name, err)
	}
	return nil
}

func (n *Net) Detect(frame videoframe.NoCloser) ([]Detection, error) {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return nil, xerror.New("must pass OpenCV frame to detector")
	}
	if mat.Empty() {
		return nil, xerror.New("cannot run detection on empty frame")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	size := n.opts.InputSize
	blob := gocv.BlobFromImage(*mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	n.net.SetInput(blob, "")
	out := n.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, xerror.Errorf("unable to read detector output: %w", err)
	}

	found, err := decode(data, out.Size(), decodeParams{
		scaleX:        float32(mat.Cols()) / float32(size),
		scaleY:        float32(mat.Rows()) / float32(size),
		bounds:        image.Rect(0, 0, mat.Cols(), mat.Rows()),
		minConfidence: n.opts.Confidence,
		labels:        n.opts.Labels,
	})
	if err != nil {
		return nil, err
	}
	return suppress(found, n.opts.NMS), nil
}

func (n *Net) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.net.Close()
}
