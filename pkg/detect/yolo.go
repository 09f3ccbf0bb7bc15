package detect

import (
	"fmt"
	"image"
	"sort"
)

type outputLayout struct {
	attrs, anchors int
	channelsFirst  bool
}

// layoutOf reads the last two dims of a YOLOv8 head. Stock exports emit
// [1, 4+C, N] (channels first); some toolchains transpose to [1, N, 4+C].
// The anchor count is always the larger of the two.
func layoutOf(sizes []int) (outputLayout, error) {
	if len(sizes) < 2 {
		return outputLayout{}, fmt.Errorf("unexpected detector output shape %v", sizes)
	}
	a, b := sizes[len(sizes)-2], sizes[len(sizes)-1]
	l := outputLayout{attrs: a, anchors: b, channelsFirst: true}
	if a > b {
		l = outputLayout{attrs: b, anchors: a, channelsFirst: false}
	}
	if l.attrs <= 4 {
		return outputLayout{}, fmt.Errorf("detector output shape %v has no class scores", sizes)
	}
	return l, nil
}

func (l outputLayout) at(data []float32, attr, anchor int) float32 {
	if l.channelsFirst {
		return data[attr*l.anchors+anchor]
	}
	return data[anchor*l.attrs+attr]
}

type decodeParams struct {
	scaleX, scaleY float32
	bounds         image.Rectangle
	minConfidence  float32
	labels         []string
}

// decode turns raw head output into detections in frame coordinates.
// Boxes are center/size in network input pixels; scale maps them back.
func decode(data []float32, sizes []int, p decodeParams) ([]Detection, error) {
	l, err := layoutOf(sizes)
	if err != nil {
		return nil, err
	}
	if want := l.attrs * l.anchors; len(data) < want {
		return nil, fmt.Errorf("detector output holds %d values, shape %v needs %d", len(data), sizes, want)
	}

	var found []Detection
	for i := 0; i < l.anchors; i++ {
		class, score := -1, float32(0)
		for c := 4; c < l.attrs; c++ {
			if s := l.at(data, c, i); s > score {
				class, score = c-4, s
			}
		}
		if class < 0 || score < p.minConfidence {
			continue
		}

		cx, cy := l.at(data, 0, i)*p.scaleX, l.at(data, 1, i)*p.scaleY
		w, h := l.at(data, 2, i)*p.scaleX, l.at(data, 3, i)*p.scaleY
		box := image.Rect(
			int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2),
		).Intersect(p.bounds)
		if box.Empty() {
			continue
		}

		found = append(found, Detection{
			Class:      class,
			Label:      labelFor(p.labels, class),
			Confidence: score,
			Box:        box,
		})
	}
	return found, nil
}

func iou(a, b image.Rectangle) float32 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := inter.Dx() * inter.Dy()
	union := a.Dx()*a.Dy() + b.Dx()*b.Dy() - ia
	if union <= 0 {
		return 0
	}
	return float32(ia) / float32(union)
}

// suppress is greedy per-class non-maximum suppression. Result is ordered
// by descending confidence.
func suppress(dets []Detection, threshold float32) []Detection {
	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Detection, 0, len(sorted))
	for _, d := range sorted {
		overlaps := false
		for _, k := range kept {
			if k.Class == d.Class && iou(k.Box, d.Box) > threshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, d)
		}
	}
	return kept
}
