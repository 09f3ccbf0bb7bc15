package process_test

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/spf13/afero"
	"github.com/tauraamui/tennistrack/pkg/annotate"
	"github.com/tauraamui/tennistrack/pkg/log"
	"github.com/tauraamui/tennistrack/pkg/process"
	"github.com/tauraamui/tennistrack/pkg/video/videoframe"
	"github.com/tauraamui/tennistrack/pkg/video/videostream"
)

type fakeFrame struct {
	index  int
	dims   videoframe.Dimensions
	closed bool
}

func (f *fakeFrame) DataRef() interface{}              { return f }
func (f *fakeFrame) Dimensions() videoframe.Dimensions { return f.dims }
func (f *fakeFrame) Clone() videoframe.Frame           { c := *f; return &c }
func (f *fakeFrame) Close()                            { f.closed = true }

type fakeReader struct {
	props  videostream.Props
	failAt int
	reads  int
	closed bool
}

func (r *fakeReader) Props() videostream.Props { return r.props }

func (r *fakeReader) Read(frame videoframe.Frame) error {
	r.reads++
	if r.reads == r.failAt || r.reads > r.props.FrameCount {
		return videostream.ErrReadFrame
	}
	f := frame.(*fakeFrame)
	f.index = r.reads
	f.dims = r.props.Dimensions()
	return nil
}

func (r *fakeReader) Close() error { r.closed = true; return nil }

type fakeWriter struct {
	written []int
	failAt  int
	closed  bool
}

func (w *fakeWriter) Write(frame videoframe.NoCloser) error {
	if len(w.written)+1 == w.failAt {
		return errors.New("disk full")
	}
	w.written = append(w.written, frame.DataRef().(*fakeFrame).index)
	return nil
}

func (w *fakeWriter) Close() error { w.closed = true; return nil }

type fakeBackend struct {
	fs             afero.Fs
	reader         *fakeReader
	writer         *fakeWriter
	readerErr      error
	writerErr      error
	skipOutputFile bool
	writerProps    videostream.Props
	writerOpened   bool
}

func (b *fakeBackend) OpenReader(string) (videostream.Reader, error) {
	if b.readerErr != nil {
		return nil, b.readerErr
	}
	return b.reader, nil
}

func (b *fakeBackend) OpenWriter(path string, props videostream.Props) (videostream.Writer, error) {
	if b.writerErr != nil {
		return nil, b.writerErr
	}
	b.writerOpened = true
	b.writerProps = props
	if !b.skipOutputFile {
		if err := afero.WriteFile(b.fs, path, []byte("mp4v"), 0644); err != nil {
			return nil, err
		}
	}
	return b.writer, nil
}

func (b *fakeBackend) NewFrame() videoframe.Frame { return &fakeFrame{} }

var passthrough = annotate.AnnotatorFunc(func(f videoframe.Frame) (videoframe.Frame, error) {
	return f.Clone(), nil
})

var courtProps = videostream.Props{FPS: 30, Width: 480, Height: 270, FrameCount: 30}

func setup(t *testing.T, reader *fakeReader) *fakeBackend {
	t.Helper()
	memFs := afero.NewMemMapFs()
	resetFs := process.OverloadFS(memFs)
	resetLog := log.Silence()
	t.Cleanup(func() {
		resetFs()
		resetLog()
	})
	return &fakeBackend{fs: memFs, reader: reader, writer: &fakeWriter{}}
}

func TestRunWritesEveryFrameAndReportsProgress(t *testing.T) {
	is := is.New(t)
	backend := setup(t, &fakeReader{props: courtProps})

	var progress []float64
	res, err := process.New(backend, passthrough).Run(
		context.Background(), "in.mp4", "out.mp4",
		process.ProgressFunc(func(f float64) { progress = append(progress, f) }),
	)
	is.NoErr(err)
	is.True(res.Success)
	is.Equal(res.FramesTotal, 30)
	is.Equal(res.FramesWritten, 30)
	is.Equal(res.Props, courtProps)
	is.Equal(backend.writerProps, courtProps)

	is.Equal(len(backend.writer.written), 30)
	for i, idx := range backend.writer.written {
		is.Equal(idx, i+1)
	}

	is.Equal(len(progress), 30)
	for i, p := range progress {
		is.Equal(p, float64(i+1)/float64(30))
	}
	is.Equal(progress[29], 1.0)

	is.True(backend.reader.closed)
	is.True(backend.writer.closed)
}

func TestRunStopsEarlyWhenFrameUnreadable(t *testing.T) {
	is := is.New(t)
	backend := setup(t, &fakeReader{props: courtProps, failAt: 15})

	var reports int
	res, err := process.New(backend, passthrough).Run(
		context.Background(), "in.mp4", "out.mp4",
		process.ProgressFunc(func(float64) { reports++ }),
	)
	is.NoErr(err)
	is.True(!res.Success)
	is.Equal(res.FramesWritten, 14)
	is.Equal(len(backend.writer.written), 14)
	is.Equal(reports, 14)
	is.True(backend.reader.closed)
	is.True(backend.writer.closed)

	exists, err := afero.Exists(backend.fs, "out.mp4")
	is.NoErr(err)
	is.True(exists)
}

func TestRunInputOpenFailure(t *testing.T) {
	is := is.New(t)
	backend := setup(t, nil)
	backend.readerErr = videostream.ErrOpenReader

	res, err := process.New(backend, passthrough).Run(context.Background(), "in.mp4", "out.mp4", nil)
	is.True(errors.Is(err, process.ErrOpenInput))
	is.True(errors.Is(err, videostream.ErrOpenReader))
	is.True(!res.Success)
	is.True(!backend.writerOpened)
}

func TestRunOutputOpenFailureReleasesInput(t *testing.T) {
	is := is.New(t)
	backend := setup(t, &fakeReader{props: courtProps})
	backend.writerErr = videostream.ErrOpenWriter

	res, err := process.New(backend, passthrough).Run(context.Background(), "in.mp4", "out.mp4", nil)
	is.True(errors.Is(err, process.ErrOpenOutput))
	is.True(!res.Success)
	is.True(backend.reader.closed)
}

func TestRunAnnotatorFailure(t *testing.T) {
	is := is.New(t)
	backend := setup(t, &fakeReader{props: courtProps})

	boom := errors.New("inference failed")
	failing := annotate.AnnotatorFunc(func(f videoframe.Frame) (videoframe.Frame, error) {
		if f.DataRef().(*fakeFrame).index == 3 {
			return nil, boom
		}
		return f.Clone(), nil
	})

	res, err := process.New(backend, failing).Run(context.Background(), "in.mp4", "out.mp4", nil)
	is.True(errors.Is(err, boom))
	is.True(!res.Success)
	is.Equal(res.FramesWritten, 2)
	is.True(backend.reader.closed)
	is.True(backend.writer.closed)
}

func TestRunWriteFailure(t *testing.T) {
	is := is.New(t)
	backend := setup(t, &fakeReader{props: courtProps})
	backend.writer.failAt = 5

	res, err := process.New(backend, passthrough).Run(context.Background(), "in.mp4", "out.mp4", nil)
	is.True(err != nil)
	is.True(!res.Success)
	is.Equal(res.FramesWritten, 4)
}

func TestRunHonoursCancelledContext(t *testing.T) {
	is := is.New(t)
	backend := setup(t, &fakeReader{props: courtProps})

	ctx, cancel := context.WithCancel(context.Background())
	var reports int
	res, err := process.New(backend, passthrough).Run(
		ctx, "in.mp4", "out.mp4",
		process.ProgressFunc(func(float64) {
			reports++
			if reports == 10 {
				cancel()
			}
		}),
	)
	is.True(errors.Is(err, context.Canceled))
	is.True(!res.Success)
	is.Equal(res.FramesWritten, 10)
	is.True(backend.writer.closed)
}

func TestRunWithoutOutputFileIsNotSuccess(t *testing.T) {
	is := is.New(t)
	backend := setup(t, &fakeReader{props: courtProps})
	backend.skipOutputFile = true

	res, err := process.New(backend, passthrough).Run(context.Background(), "in.mp4", "out.mp4", nil)
	is.NoErr(err)
	is.True(!res.Success)
	is.Equal(res.FramesWritten, 30)
}
