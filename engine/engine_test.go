package engine

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
)

var (
	green = gocv.Vecb{0, 255, 0}
	gray  = gocv.Vecb{128, 128, 128}
)

func solid(t *testing.T, w, h int, b, g, r float64) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), h, w, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func happy() iface.Detection {
	return iface.Detection{
		Class:      "happy",
		Confidence: 0.97,
		Box:        iface.Box{CenterX: 50, CenterY: 50, Width: 40, Height: 40},
	}
}

func countMatching(m gocv.Mat, rows [2]int, want func(v gocv.Vecb) bool) int {
	n := 0
	for y := rows[0]; y < rows[1]; y++ {
		for x := 0; x < m.Cols(); x++ {
			if want(m.GetVecbAt(y, x)) {
				n++
			}
		}
	}
	return n
}

func TestAnnotate_NoDetectionsReturnsOriginal(t *testing.T) {
	img := solid(t, 64, 48, 10, 20, 30)
	for _, mode := range []Mode{ModeMaskLabel, ModeBoxLabel} {
		out, err := Annotate(img, nil, EmotionStyles(), mode)
		require.NoError(t, err)
		want, err := Encode(img, FormatPNG)
		require.NoError(t, err)
		got, err := Encode(out, FormatPNG)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want, got), mode.String())
		_ = out.Close()
	}
}

func TestAnnotate_BoxLabel(t *testing.T) {
	img := solid(t, 100, 100, 128, 128, 128)
	out, err := Annotate(img, iface.DetectionSet{happy()}, EmotionStyles(), ModeBoxLabel)
	require.NoError(t, err)
	defer out.Close()

	t.Run("rectangle edges", func(t *testing.T) {
		assert.Equal(t, green, out.GetVecbAt(50, 30))
		assert.Equal(t, green, out.GetVecbAt(50, 70))
		assert.Equal(t, green, out.GetVecbAt(30, 50))
		assert.Equal(t, green, out.GetVecbAt(70, 50))
		assert.Equal(t, gray, out.GetVecbAt(50, 50))
	})

	t.Run("label above the box", func(t *testing.T) {
		plate := countMatching(out, [2]int{0, 28}, func(v gocv.Vecb) bool { return v[1] == 255 && v[0] == 0 && v[2] == 0 })
		assert.Greater(t, plate, 100)
		// black text on the green plate
		text := countMatching(out, [2]int{0, 28}, func(v gocv.Vecb) bool { return v[0] < 60 && v[1] < 60 && v[2] < 60 })
		assert.Greater(t, text, 10)
	})

	t.Run("input untouched", func(t *testing.T) {
		assert.Equal(t, gray, img.GetVecbAt(50, 30))
	})
}

func TestAnnotate_ClampsNegativeCorners(t *testing.T) {
	img := solid(t, 100, 100, 128, 128, 128)
	d := iface.Detection{Class: "happy", Confidence: 0.5, Box: iface.Box{CenterX: 0, CenterY: 50, Width: 50, Height: 20}}

	r := ClampRect(d.Box, 100, 100)
	assert.Equal(t, 0, r.Min.X)
	assert.Equal(t, 25, r.Max.X)

	out, err := Annotate(img, iface.DetectionSet{d}, EmotionStyles(), ModeBoxLabel)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, green, out.GetVecbAt(50, 0))
}

func TestAnnotate_UnknownClassUsesFallback(t *testing.T) {
	img := solid(t, 100, 100, 0, 0, 0)
	d := iface.Detection{Class: "zebra", Confidence: 0.8, Box: iface.Box{CenterX: 50, CenterY: 60, Width: 30, Height: 30}}

	out, err := Annotate(img, iface.DetectionSet{d}, EmotionStyles(), ModeBoxLabel)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, gocv.Vecb{255, 255, 255}, out.GetVecbAt(60, 35))
}

func TestAnnotate_Deterministic(t *testing.T) {
	img := solid(t, 120, 90, 40, 90, 200)
	dets := iface.DetectionSet{
		happy(),
		{Class: "sad", Confidence: 0.41, Box: iface.Box{CenterX: 90, CenterY: 70, Width: 30, Height: 20}},
	}
	for _, mode := range []Mode{ModeMaskLabel, ModeBoxLabel} {
		var encoded [2][]byte
		for i := range encoded {
			out, err := Annotate(img, dets, EmotionStyles(), mode)
			require.NoError(t, err)
			encoded[i], err = Encode(out, FormatPNG)
			require.NoError(t, err)
			_ = out.Close()
		}
		assert.Equal(t, encoded[0], encoded[1], mode.String())
	}
}

func TestAnnotate_MaskLabel(t *testing.T) {
	styles := NewStyleSet(Style{Color: White}, map[string]Style{
		"blob": {Color: color.RGBA{R: 255, A: 255}},
	})
	img := solid(t, 100, 100, 0, 0, 0)

	t.Run("box region", func(t *testing.T) {
		d := iface.Detection{Class: "blob", Confidence: 0.9, Box: iface.Box{CenterX: 50, CenterY: 60, Width: 40, Height: 40}}
		out, err := Annotate(img, iface.DetectionSet{d}, styles, ModeMaskLabel)
		require.NoError(t, err)
		defer out.Close()

		inside := out.GetVecbAt(70, 50)
		assert.InDelta(t, 128, int(inside[2]), 2)
		assert.Equal(t, uint8(0), inside[1])
		assert.Equal(t, gocv.Vecb{0, 0, 0}, out.GetVecbAt(95, 5))
	})

	t.Run("polygon outline", func(t *testing.T) {
		d := iface.Detection{
			Class:      "blob",
			Confidence: 0.9,
			Box:        iface.Box{CenterX: 50, CenterY: 60, Width: 60, Height: 60},
			Points:     []iface.Position{{X: 20, Y: 90}, {X: 80, Y: 90}, {X: 50, Y: 40}},
		}
		out, err := Annotate(img, iface.DetectionSet{d}, styles, ModeMaskLabel)
		require.NoError(t, err)
		defer out.Close()

		assert.InDelta(t, 128, int(out.GetVecbAt(80, 50)[2]), 2)
		// inside the box but outside the triangle
		assert.Equal(t, gocv.Vecb{0, 0, 0}, out.GetVecbAt(50, 25))
	})
}

func TestAnnotate_Errors(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	_, err := Annotate(empty, iface.DetectionSet{happy()}, EmotionStyles(), ModeBoxLabel)
	assert.Equal(t, iface.EncodingError, iface.KindOf(err))

	img := solid(t, 10, 10, 0, 0, 0)
	_, err = Annotate(img, iface.DetectionSet{happy()}, EmotionStyles(), Mode(42))
	assert.Equal(t, iface.ValidationError, iface.KindOf(err))
}

func TestTextColor(t *testing.T) {
	tests := []struct {
		name string
		bg   color.RGBA
		want color.RGBA
	}{
		{"red", color.RGBA{R: 255, A: 255}, White},
		{"blue", color.RGBA{B: 255, A: 255}, White},
		{"black", color.RGBA{A: 255}, White},
		{"green", color.RGBA{G: 255, A: 255}, Black},
		{"yellow", color.RGBA{R: 255, G: 255, A: 255}, Black},
		{"cyan", color.RGBA{G: 255, B: 255, A: 255}, Black},
		{"white", White, Black},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TextColor(tt.bg))
		})
	}
}

func TestLabelOrigin(t *testing.T) {
	size := image.Pt(40, 10)
	assert.Equal(t, image.Pt(5, 30), LabelOrigin(image.Pt(5, 30), size, 4, 100, 100))
	// pushed down below the top edge
	assert.Equal(t, image.Pt(0, 12), LabelOrigin(image.Pt(-8, -10), size, 4, 100, 100))
	// pulled left so the plate fits
	assert.Equal(t, image.Pt(56, 30), LabelOrigin(image.Pt(90, 30), size, 4, 100, 100))
	// wider than the image
	assert.Equal(t, 0, LabelOrigin(image.Pt(30, 30), image.Pt(200, 10), 4, 100, 100).X)
}

func TestStyleSet(t *testing.T) {
	s := EmotionStyles()
	assert.Equal(t, color.RGBA{G: 255, A: 255}, s.Lookup("happy").Color)
	assert.Equal(t, 2, s.Lookup("happy").Thickness)
	assert.Equal(t, White, s.Lookup("unknown").Color)
	assert.Len(t, s.Rules(), 6)

	var nilSet *StyleSet
	assert.Equal(t, White, nilSet.Lookup("x").Color)

	c, err := ParseColor("#00FF7f")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{G: 255, B: 127, A: 255}, c)
	_, err = ParseColor("green")
	assert.Error(t, err)
}

func TestScoredLabel(t *testing.T) {
	assert.Equal(t, "happy (0.97)", ScoredLabel(happy()))
	assert.Equal(t, "sad (0.10)", ScoredLabel(iface.Detection{Class: "sad", Confidence: 0.1}))
}

func TestParse(t *testing.T) {
	m, err := ParseMode("Box_Label")
	require.NoError(t, err)
	assert.Equal(t, ModeBoxLabel, m)
	_, err = ParseMode("outline")
	assert.Error(t, err)

	f, err := ParseFormat("jpg")
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, f)
	assert.Equal(t, "image/jpeg", f.ContentType())
	assert.Equal(t, ".jpg", f.Ext())
	assert.Equal(t, ".png", FormatPNG.Ext())
	_, err = ParseFormat("bmp")
	assert.Error(t, err)
}

func TestCodec(t *testing.T) {
	img := solid(t, 32, 32, 0, 255, 0)

	png, err := Encode(img, FormatPNG)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	jpg, err := Encode(img, FormatJPEG)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(jpg, []byte{0xFF, 0xD8}))

	back, err := Decode(png)
	require.NoError(t, err)
	defer back.Close()
	assert.Equal(t, 32, back.Cols())
	assert.Equal(t, green, back.GetVecbAt(3, 3))

	_, err = Decode([]byte("not an image"))
	assert.Equal(t, iface.EncodingError, iface.KindOf(err))
	_, err = Decode(nil)
	assert.Equal(t, iface.EncodingError, iface.KindOf(err))
	_, err = Encode(img, Format("tiff"))
	assert.Equal(t, iface.EncodingError, iface.KindOf(err))
	_, err = ReadFile(t.TempDir() + "/missing.png")
	assert.Equal(t, iface.EncodingError, iface.KindOf(err))
}
