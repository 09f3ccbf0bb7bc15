package preview_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/tauraamui/tennistrack/pkg/log"
	"github.com/tauraamui/tennistrack/pkg/preview"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

func found(string) (string, error)   { return "/usr/bin/ffmpeg", nil }
func missing(string) (string, error) { return "", errors.New("not found") }

func TestTranscodeBuildsBrowserPlayableArgs(t *testing.T) {
	is := is.New(t)
	defer log.Silence()()
	defer preview.OverloadLookPath(found)()

	var args []string
	defer preview.OverloadRunStream(func(s *ffmpeg.Stream) error {
		args = s.GetArgs()
		return nil
	})()

	is.NoErr(preview.FFmpeg{}.Transcode(context.Background(), "/tmp/out.mp4", "/tmp/preview.mp4"))

	joined := strings.Join(args, " ")
	is.True(strings.Contains(joined, "-i /tmp/out.mp4"))
	is.True(strings.Contains(joined, "libx264"))
	is.True(strings.Contains(joined, "yuv420p"))
	is.True(strings.Contains(joined, "+faststart"))
	is.True(strings.Contains(joined, "-y"))
	is.Equal(args[len(args)-2], "/tmp/preview.mp4")
}

func TestTranscodeWithoutFFmpeg(t *testing.T) {
	is := is.New(t)
	defer preview.OverloadLookPath(missing)()

	called := false
	defer preview.OverloadRunStream(func(*ffmpeg.Stream) error {
		called = true
		return nil
	})()

	err := preview.FFmpeg{}.Transcode(context.Background(), "a.mp4", "b.mp4")
	is.True(errors.Is(err, preview.ErrUnavailable))
	is.True(!called)
	is.True(!preview.FFmpeg{}.Available())
}

func TestTranscodeSurfacesRunError(t *testing.T) {
	is := is.New(t)
	defer log.Silence()()
	defer preview.OverloadLookPath(found)()

	boom := errors.New("exit status 1")
	defer preview.OverloadRunStream(func(s *ffmpeg.Stream) error {
		stderr, ok := s.Context.Value("Stderr").(io.Writer)
		if !ok {
			return errors.New("stderr not captured")
		}
		fmt.Fprint(stderr, "ffmpeg version 6.0\nb.mp4: Permission denied\n")
		return boom
	})()

	err := preview.FFmpeg{}.Transcode(context.Background(), "a.mp4", "b.mp4")
	is.True(errors.Is(err, boom))
	is.True(strings.HasSuffix(err.Error(), "b.mp4: Permission denied"))
}

func TestTranscodeKeepsCallerContext(t *testing.T) {
	is := is.New(t)
	defer log.Silence()()
	defer preview.OverloadLookPath(found)()

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "job")

	defer preview.OverloadRunStream(func(s *ffmpeg.Stream) error {
		is.Equal(s.Context.Value(key{}), "job")
		is.True(s.Context.Value("OverWriteOutput") != nil)
		return nil
	})()

	is.NoErr(preview.FFmpeg{}.Transcode(ctx, "a.mp4", "b.mp4"))
}
