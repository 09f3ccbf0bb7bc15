package preview

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/tauraamui/tennistrack/pkg/log"
	"github.com/tauraamui/xerror"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

var ErrUnavailable = xerror.New("ffmpeg not found on PATH")

type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// browserArgs re-encode to H.264 with the moov atom up front so the file
// plays inline while still downloading.
var browserArgs = ffmpeg.KwArgs{
	"c:v":      "libx264",
	"preset":   "veryfast",
	"pix_fmt":  "yuv420p",
	"movflags": "+faststart",
}

var lookPath = exec.LookPath

var runStream = func(stream *ffmpeg.Stream) error {
	return stream.Run()
}

type FFmpeg struct{}

func (FFmpeg) Available() bool {
	_, err := lookPath("ffmpeg")
	return err == nil
}

func (f FFmpeg) Transcode(ctx context.Context, src, dst string) error {
	if !f.Available() {
		return ErrUnavailable
	}

	var stderr bytes.Buffer
	// OverWriteOutput and WithErrorOutput live in the stream context, so
	// it has to be set before them
	stream := ffmpeg.Input(src).Output(dst, browserArgs)
	stream.Context = ctx
	stream = stream.OverWriteOutput().WithErrorOutput(&stderr)

	log.Debug("Transcoding preview: ffmpeg %s", strings.Join(stream.GetArgs(), " "))
	if err := runStream(stream); err != nil {
		return xerror.Errorf("preview transcode of %s failed: %w: %s", src, err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
