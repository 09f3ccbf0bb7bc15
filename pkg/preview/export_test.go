package preview

import ffmpeg "github.com/u2takey/ffmpeg-go"

func OverloadLookPath(overload func(string) (string, error)) func() {
	ref := lookPath
	lookPath = overload
	return func() { lookPath = ref }
}

func OverloadRunStream(overload func(*ffmpeg.Stream) error) func() {
	ref := runStream
	runStream = overload
	return func() { runStream = ref }
}
