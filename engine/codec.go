package engine

import (
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
)

// Format is the encoding of an annotated image.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

const jpegQuality = 95

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("unsupported image format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Ext is the file extension including the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return string(gocv.JPEGFileExt)
	}
	return string(gocv.PNGFileExt)
}

// Decode turns encoded image bytes into a BGR Mat.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), iface.Errorf(iface.EncodingError, "engine.Decode", "no image data")
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	// IMDecode reports undecodable input with an empty Mat
	_ = mat.Close()
	if err == nil {
		err = errors.New("decoded image is empty or unsupported format")
	}
	return gocv.NewMat(), iface.Wrap(iface.EncodingError, "engine.Decode", err)
}

// ReadFile decodes an image staged on disk.
func ReadFile(path string) (gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		_ = mat.Close()
		return gocv.NewMat(), iface.Errorf(iface.EncodingError, "engine.ReadFile", "cannot decode %s", path)
	}
	return mat, nil
}

// Encode serializes mat in format f. The returned slice is owned by Go.
func Encode(mat gocv.Mat, f Format) ([]byte, error) {
	if mat.Empty() {
		return nil, iface.Errorf(iface.EncodingError, "engine.Encode", "empty image")
	}
	var (
		buf *gocv.NativeByteBuffer
		err error
	)
	switch f {
	case FormatPNG:
		buf, err = gocv.IMEncode(gocv.PNGFileExt, mat)
	case FormatJPEG:
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), jpegQuality})
	default:
		return nil, iface.Errorf(iface.EncodingError, "engine.Encode", "unsupported format %q", f)
	}
	if err != nil {
		return nil, iface.Wrap(iface.EncodingError, "engine.Encode", err)
	}
	defer buf.Close()
	out := append([]byte(nil), buf.GetBytes()...)
	if len(out) == 0 {
		return nil, iface.Errorf(iface.EncodingError, "engine.Encode", "encoder produced no bytes")
	}
	return out, nil
}
