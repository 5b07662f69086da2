// Package receipt renders the two-line greeting receipt as a PDF.
package receipt

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
)

const (
	ContentType = "application/pdf"
	Filename    = "output.pdf"

	// Positions are measured from the bottom-left corner, in points.
	marginX   = 100.0
	nameLineY = 800.0
	lineGap   = 20.0
	fontSize  = 12.0
)

// Values is the "values" object of a receipt request.
type Values struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (v Values) lines() []string {
	name, email := v.Name, v.Email
	if name == "" {
		name = "Unknown"
	}
	if email == "" {
		email = "N/A"
	}
	return []string{"Hello, " + name, "Email: " + email}
}

// Render returns the PDF bytes for v.
func Render(v Values) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetTitle("Receipt", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", fontSize)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	_, pageH := pdf.GetPageSize()
	for i, line := range v.lines() {
		pdf.Text(marginX, pageH-nameLineY+float64(i)*lineGap, tr(line))
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, iface.Wrap(iface.EncodingError, "receipt.Render", fmt.Errorf("write pdf: %w", err))
	}
	return buf.Bytes(), nil
}
