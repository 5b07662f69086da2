package engine

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
)

// pass draws one layer of annotations for every detection.
type pass func(dst *gocv.Mat, dets iface.DetectionSet, styles *StyleSet)

var modePasses = map[Mode][]pass{
	ModeMaskLabel: {maskPass, classLabelPass},
	ModeBoxLabel:  {boxPass, scoredLabelPass},
}

// Annotate renders dets onto a copy of img. The input Mat is left untouched
// and the caller owns the returned Mat. With no detections the copy is
// returned as is.
func Annotate(img gocv.Mat, dets iface.DetectionSet, styles *StyleSet, mode Mode) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), iface.Errorf(iface.EncodingError, "engine.Annotate", "empty image")
	}
	passes, ok := modePasses[mode]
	if !ok {
		return gocv.NewMat(), iface.Errorf(iface.ValidationError, "engine.Annotate", "unsupported mode %s", mode)
	}
	out := img.Clone()
	if len(dets) == 0 {
		return out, nil
	}
	for _, p := range passes {
		p(&out, dets, styles)
	}
	return out, nil
}

// TextColor picks black or white for text drawn over bg, by CIE lightness.
func TextColor(bg color.RGBA) color.RGBA {
	c, ok := colorful.MakeColor(bg)
	if !ok {
		return Black
	}
	l, _, _ := c.Lab()
	if l < lightnessThreshold {
		return White
	}
	return Black
}

// ScoredLabel formats the label used in box mode.
func ScoredLabel(d iface.Detection) string {
	return fmt.Sprintf("%s (%.2f)", d.Class, d.Confidence)
}

func maskPass(dst *gocv.Mat, dets iface.DetectionSet, styles *StyleSet) {
	overlay := dst.Clone()
	defer overlay.Close()
	w, h := dst.Cols(), dst.Rows()
	for _, d := range dets {
		poly := regionOf(d, w, h)
		if len(poly) < 3 {
			continue
		}
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{poly})
		gocv.FillPoly(&overlay, pv, styles.Lookup(d.Class).Color)
		pv.Close()
	}
	gocv.AddWeighted(overlay, maskOpacity, *dst, 1-maskOpacity, 0, dst)
}

func classLabelPass(dst *gocv.Mat, dets iface.DetectionSet, styles *StyleSet) {
	w, h := dst.Cols(), dst.Rows()
	for _, d := range dets {
		r := ClampRect(d.Box, w, h)
		drawLabel(dst, d.Class, r.Min, styles.Lookup(d.Class))
	}
}

func boxPass(dst *gocv.Mat, dets iface.DetectionSet, styles *StyleSet) {
	w, h := dst.Cols(), dst.Rows()
	for _, d := range dets {
		st := styles.Lookup(d.Class)
		gocv.Rectangle(dst, ClampRect(d.Box, w, h), st.Color, st.Thickness)
	}
}

func scoredLabelPass(dst *gocv.Mat, dets iface.DetectionSet, styles *StyleSet) {
	w, h := dst.Cols(), dst.Rows()
	for _, d := range dets {
		r := ClampRect(d.Box, w, h)
		anchor := image.Pt(r.Min.X, r.Min.Y-boxLabelGap)
		drawLabel(dst, ScoredLabel(d), anchor, styles.Lookup(d.Class))
	}
}

// drawLabel writes text with its baseline at anchor on a plate filled with the
// style color. The plate is shifted to stay inside the image.
func drawLabel(dst *gocv.Mat, text string, anchor image.Point, st Style) {
	size, baseline := gocv.GetTextSizeWithBaseline(text, labelFont, labelScale, labelThickness)
	origin := LabelOrigin(anchor, size, baseline, dst.Cols(), dst.Rows())
	plate := image.Rect(origin.X, origin.Y-size.Y-labelPad, origin.X+size.X+2*labelPad, origin.Y+baseline)
	gocv.Rectangle(dst, plate, st.Color, -1)
	gocv.PutText(dst, text, image.Pt(origin.X+labelPad, origin.Y), labelFont, labelScale, TextColor(st.Color), labelThickness)
}
