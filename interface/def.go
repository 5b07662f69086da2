package iface

import "strings"

// TaskKind names a detection pipeline configuration selected by a route.
type TaskKind string

const (
	TaskSegmentation TaskKind = "segmentation"
	TaskEmotion      TaskKind = "emotion"
)

// UploadedMedia is a raw upload as received by a front door.
type UploadedMedia struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Stem returns the filename without directory or extension.
func (m *UploadedMedia) Stem() string {
	name := m.Filename
	if i := strings.LastIndexAny(name, `/\`); i != -1 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}

type Position struct {
	X, Y float64
}

// Box is a center-anchored bounding box in pixel units.
type Box struct {
	CenterX float64
	CenterY float64
	Width   float64
	Height  float64
}

// Corners converts the box to integer corner coordinates. The result may
// lie partly outside the image; callers clamp before drawing.
func (b Box) Corners() (x1, y1, x2, y2 int) {
	cx, cy := int(b.CenterX), int(b.CenterY)
	w, h := int(b.Width), int(b.Height)
	x1 = cx - w/2
	y1 = cy - h/2
	return x1, y1, x1 + w, y1 + h
}

type Detection struct {
	Class      string
	Confidence float64
	Box        Box
	// Points is the segmentation outline, empty for plain box detections.
	Points []Position
}

// DetectionSet keeps provider response order.
type DetectionSet []Detection

// ModelRef identifies a hosted model on the provider side.
type ModelRef struct {
	Endpoint string
	Project  string
	Version  int
}

type DetectParams struct {
	Model ModelRef
	// Confidence is a percentage in (0,100].
	Confidence float64
	// Overlap is a percentage; zero leaves it to the provider default.
	Overlap float64
}

// Artifact is the encoded output handed back to a front door.
type Artifact struct {
	Bytes       []byte
	ContentType string
	Filename    string
}
