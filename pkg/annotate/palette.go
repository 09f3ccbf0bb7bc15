package annotate

import (
	"github.com/lucasb-eyer/go-colorful"
)

// Palette maps class ids to stable, well separated colours.
type Palette []colorful.Color

// golden angle keeps neighbouring class ids far apart on the hue wheel
const hueStep = 137.508

func NewPalette(n int) Palette {
	if n < 1 {
		n = 1
	}
	p := make(Palette, n)
	for i := range p {
		hue := float64(i) * hueStep
		for hue >= 360 {
			hue -= 360
		}
		p[i] = colorful.Hsv(hue, 0.85, 0.95)
	}
	return p
}

func (p Palette) For(class int) colorful.Color {
	if class < 0 {
		class = -class
	}
	return p[class%len(p)]
}
