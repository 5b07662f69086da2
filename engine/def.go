package engine

import (
	"fmt"
	"image/color"
	"maps"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"
)

// Mode selects which rendering passes Annotate runs.
type Mode int

const (
	// ModeMaskLabel fills each detection region, then writes the class name.
	ModeMaskLabel Mode = iota + 1
	// ModeBoxLabel outlines each detection and writes "class (0.97)" above it.
	ModeBoxLabel
)

func (m Mode) String() string {
	switch m {
	case ModeMaskLabel:
		return "mask_label"
	case ModeBoxLabel:
		return "box_label"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mask_label", "mask":
		return ModeMaskLabel, nil
	case "box_label", "box":
		return ModeBoxLabel, nil
	}
	return 0, fmt.Errorf("unknown annotation mode %q", s)
}

const (
	labelFont      = gocv.FontHersheySimplex
	labelScale     = 0.5
	labelThickness = 2
	labelPad       = 2
	// boxLabelGap is the distance between a box's top edge and its label baseline.
	boxLabelGap = 10
	maskOpacity = 0.5
	// lightnessThreshold is the CIE L* (0..1) below which labels are written in white.
	lightnessThreshold = 0.6
	defaultThickness   = 2
)

var (
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Black = color.RGBA{A: 255}
)

type Style struct {
	Color     color.RGBA
	Thickness int
}

// StyleSet maps class labels to styles. It is built once and only read
// afterwards, so it is safe to share between requests.
type StyleSet struct {
	rules    map[string]Style
	fallback Style
}

func NewStyleSet(fallback Style, rules map[string]Style) *StyleSet {
	if fallback.Thickness <= 0 {
		fallback.Thickness = defaultThickness
	}
	s := &StyleSet{rules: make(map[string]Style, len(rules)), fallback: fallback}
	for class, st := range rules {
		if st.Thickness <= 0 {
			st.Thickness = defaultThickness
		}
		s.rules[class] = st
	}
	return s
}

// Lookup returns the style for class, or the fallback style.
func (s *StyleSet) Lookup(class string) Style {
	if s == nil {
		return Style{Color: White, Thickness: defaultThickness}
	}
	if st, ok := s.rules[class]; ok {
		return st
	}
	return s.fallback
}

func (s *StyleSet) Fallback() Style {
	return s.fallback
}

// Rules returns a copy of the configured class styles.
func (s *StyleSet) Rules() map[string]Style {
	return maps.Clone(s.rules)
}

// ParseColor reads "#RRGGBB" hex notation.
func ParseColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("parse color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// EmotionStyles is the palette used for the emotion classes.
func EmotionStyles() *StyleSet {
	return NewStyleSet(Style{Color: White}, map[string]Style{
		"anger":   {Color: color.RGBA{R: 255, A: 255}},
		"fear":    {Color: color.RGBA{R: 255, G: 255, A: 255}},
		"happy":   {Color: color.RGBA{G: 255, A: 255}},
		"neutral": {Color: color.RGBA{G: 255, B: 255, A: 255}},
		"sad":     {Color: color.RGBA{B: 255, A: 255}},
		"disgust": {Color: color.RGBA{R: 255, B: 255, A: 255}},
	})
}

// SegmentationStyles covers the most frequent COCO classes.
func SegmentationStyles() *StyleSet {
	return NewStyleSet(Style{Color: White}, map[string]Style{
		"person":     {Color: color.RGBA{R: 163, G: 81, B: 251, A: 255}},
		"car":        {Color: color.RGBA{R: 255, G: 64, B: 64, A: 255}},
		"bicycle":    {Color: color.RGBA{R: 255, G: 161, B: 160, A: 255}},
		"dog":        {Color: color.RGBA{R: 255, G: 118, B: 51, A: 255}},
		"cat":        {Color: color.RGBA{R: 255, G: 182, B: 51, A: 255}},
		"bird":       {Color: color.RGBA{R: 209, G: 212, B: 53, A: 255}},
		"chair":      {Color: color.RGBA{R: 76, G: 251, B: 18, A: 255}},
		"bottle":     {Color: color.RGBA{R: 148, G: 207, B: 26, A: 255}},
		"cup":        {Color: color.RGBA{R: 64, G: 222, B: 138, A: 255}},
		"tv":         {Color: color.RGBA{R: 27, G: 150, B: 64, A: 255}},
		"laptop":     {Color: color.RGBA{R: 0, G: 214, B: 193, A: 255}},
		"cell phone": {Color: color.RGBA{R: 46, G: 156, B: 170, A: 255}},
	})
}
