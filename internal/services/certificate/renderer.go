package certificate

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Document is the content printed on a certificate
type Document struct {
	RecipientName string
	CourseName    string
	AccessCode    string
	IssuedAt      time.Time
}

// Renderer draws certificate PDFs
type Renderer struct {
	issuer string
}

// NewRenderer creates a renderer that signs certificates as issuer
func NewRenderer(issuer string) *Renderer {
	return &Renderer{issuer: issuer}
}

// Render returns the certificate as a landscape A4 PDF
func (r *Renderer) Render(doc Document) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Certificate of Completion - %s", doc.CourseName), true)
	pdf.SetAuthor(r.issuer, true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	width, height := pdf.GetPageSize()

	pdf.SetDrawColor(15, 118, 110)
	pdf.SetLineWidth(2)
	pdf.Rect(10, 10, width-20, height-20, "D")
	pdf.SetLineWidth(0.5)
	pdf.Rect(14, 14, width-28, height-28, "D")

	pdf.SetY(40)
	pdf.SetFont("Helvetica", "B", 32)
	pdf.SetTextColor(15, 118, 110)
	pdf.CellFormat(0, 16, "Certificate of Completion", "", 1, "C", false, 0, "")

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 26)
	pdf.SetTextColor(20, 20, 20)
	pdf.CellFormat(0, 14, tr(doc.RecipientName), "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 8, "has successfully completed", "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr(doc.CourseName), "", 1, "C", false, 0, "")

	pdf.SetY(height - 50)
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued %s by %s", doc.IssuedAt.Format("January 2, 2006"), tr(r.issuer)), "", 1, "C", false, 0, "")
	pdf.SetFont("Courier", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Access code: %s", doc.AccessCode), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}

	return buf.Bytes(), nil
}
