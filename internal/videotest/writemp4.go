package videotest

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"gocv.io/x/gocv"
)

// WriteMp4File encodes frameCount solid frames into dir and returns the
// file path. Each frame carries its index as text so decoded frames can
// be told apart.
func WriteMp4File(dir string, frameCount, width, height int, fps float64) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("tennistrack-%dx%d-%d.mp4", width, height, frameCount))

	vw, err := gocv.VideoWriterFile(path, "mp4v", fps, width, height, true)
	if err != nil {
		return "", err
	}
	defer vw.Close()

	for i := 0; i < frameCount; i++ {
		mat := gocv.NewMatWithSizeFromScalar(
			gocv.NewScalar(float64(40+i*5%200), 120, 60, 0), height, width, gocv.MatTypeCV8UC3,
		)
		gocv.PutText(
			&mat, fmt.Sprintf("%03d", i), image.Pt(10, height/2),
			gocv.FontHersheySimplex, 1.2, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 2,
		)
		err := vw.Write(mat)
		mat.Close()
		if err != nil {
			return "", err
		}
	}

	return path, nil
}
