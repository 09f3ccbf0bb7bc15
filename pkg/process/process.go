package process

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/tauraamui/tennistrack/pkg/annotate"
	"github.com/tauraamui/tennistrack/pkg/log"
	"github.com/tauraamui/tennistrack/pkg/metrics"
	"github.com/tauraamui/tennistrack/pkg/video/videoframe"
	"github.com/tauraamui/tennistrack/pkg/video/videostream"
	"github.com/tauraamui/xerror"
	"go.uber.org/multierr"
)

var fs = afero.NewOsFs()

var (
	ErrOpenInput  = xerror.New("unable to open input video")
	ErrOpenOutput = xerror.New("unable to open output video")
)

type Opener interface {
	OpenReader(path string) (videostream.Reader, error)
	OpenWriter(path string, props videostream.Props) (videostream.Writer, error)
	NewFrame() videoframe.Frame
}

type ProgressSink interface {
	Progress(fraction float64)
}

type ProgressFunc func(fraction float64)

func (f ProgressFunc) Progress(fraction float64) { f(fraction) }

type Result struct {
	FramesTotal   int
	FramesWritten int
	Success       bool
	Props         videostream.Props
}

type Processor struct {
	backend   Opener
	annotator annotate.Annotator
}

func New(backend Opener, annotator annotate.Annotator) *Processor {
	return &Processor{backend: backend, annotator: annotator}
}

// Run decodes in, annotates every frame and encodes the result to out with
// the same rate and dimensions. A frame that cannot be read ends the run
// early with Success false but no error; the partial output is left in
// place for the caller to deal with.
func (p *Processor) Run(ctx context.Context, in, out string, sink ProgressSink) (res Result, err error) {
	name := filepath.Base(in)
	started := time.Now()
	defer func() { recordRun(res, err, time.Since(started)) }()

	reader, err := p.backend.OpenReader(in)
	if err != nil {
		return res, xerror.Errorf("%s: %w: %w", in, ErrOpenInput, err)
	}

	props := reader.Props()
	res.Props = props
	res.FramesTotal = props.FrameCount
	if res.FramesTotal < 0 {
		res.FramesTotal = 0
	}

	writer, err := p.backend.OpenWriter(out, props)
	if err != nil {
		return res, multierr.Append(xerror.Errorf("%s: %w: %w", out, ErrOpenOutput, err), reader.Close())
	}

	log.Info(
		"[%s] processing %d frames at %.2f fps (%dx%d)",
		name, res.FramesTotal, props.FPS, props.Width, props.Height,
	)

	frame := p.backend.NewFrame()
	readFailed := false
	err = func() error {
		for i := 1; i <= res.FramesTotal; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := reader.Read(frame); err != nil {
				log.Warn("[%s] unable to read frame %d of %d, stopping early: %v", name, i, res.FramesTotal, err)
				readFailed = true
				return nil
			}

			if err := p.writeAnnotated(writer, frame); err != nil {
				return xerror.Errorf("frame %d: %w", i, err)
			}

			res.FramesWritten++
			metrics.FramesProcessedTotal.Inc()
			if sink != nil {
				sink.Progress(float64(i) / float64(res.FramesTotal))
			}
		}
		return nil
	}()
	frame.Close()

	closeErr := multierr.Combine(writer.Close(), reader.Close())
	if err != nil {
		return res, multierr.Append(err, closeErr)
	}
	if closeErr != nil {
		return res, closeErr
	}
	if readFailed {
		return res, nil
	}

	exists, err := afero.Exists(fs, out)
	if err != nil {
		return res, err
	}
	res.Success = exists
	if exists {
		log.Info("[%s] wrote %d frames to %s", name, res.FramesWritten, out)
	}
	return res, nil
}

func (p *Processor) writeAnnotated(writer videostream.Writer, frame videoframe.Frame) error {
	annotated, err := p.annotator.Annotate(frame)
	if err != nil {
		return err
	}
	defer annotated.Close()

	if err := writer.Write(annotated); err != nil {
		return xerror.Errorf("unable to write annotated frame: %w", err)
	}
	return nil
}

func recordRun(res Result, err error, took time.Duration) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case !res.Success:
		outcome = metrics.OutcomeIncomplete
	}
	metrics.RunsTotal.WithLabelValues(outcome).Inc()
	metrics.RunDuration.Observe(took.Seconds())
}
