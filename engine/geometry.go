package engine

import (
	"image"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
)

// ClampRect converts a center-anchored box to corners inside a w x h image.
// Boxes reaching past an edge are cut at that edge instead of producing
// negative coordinates.
func ClampRect(b iface.Box, w, h int) image.Rectangle {
	x1, y1, x2, y2 := b.Corners()
	return image.Rect(
		clamp(x1, 0, w-1),
		clamp(y1, 0, h-1),
		clamp(x2, 0, w-1),
		clamp(y2, 0, h-1),
	)
}

// regionOf returns the polygon filled in mask mode: the provider outline when
// there is one, the clamped box otherwise.
func regionOf(d iface.Detection, w, h int) []image.Point {
	if len(d.Points) >= 3 {
		poly := make([]image.Point, 0, len(d.Points))
		for _, p := range d.Points {
			poly = append(poly, image.Pt(clamp(int(p.X), 0, w-1), clamp(int(p.Y), 0, h-1)))
		}
		return poly
	}
	r := ClampRect(d.Box, w, h)
	if r.Empty() {
		return nil
	}
	return []image.Point{r.Min, {X: r.Max.X, Y: r.Min.Y}, r.Max, {X: r.Min.X, Y: r.Max.Y}}
}

// LabelOrigin moves a text baseline origin so that a label of the given size
// (plus its plate padding) fits inside a w x h image.
func LabelOrigin(anchor, size image.Point, baseline, w, h int) image.Point {
	maxX := w - size.X - 2*labelPad
	if maxX < 0 {
		maxX = 0
	}
	minY := size.Y + labelPad
	maxY := h - baseline - 1
	if maxY < minY {
		maxY = minY
	}
	return image.Pt(clamp(anchor.X, 0, maxX), clamp(anchor.Y, minY, maxY))
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
