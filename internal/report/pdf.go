package report

import (
	"bytes"
	"log/slog"
	"os"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfContentType   = "application/pdf"
	pdfFileExtension = ".pdf"

	// pdfFontName is the gofpdf family registered for a UTF-8 font.
	pdfFontName = "ReportSans"
	pdfCoreFont = "Arial"
)

// PDF renders reports with gofpdf. Without a UTF-8 font the core font is
// used and text is translated to cp1252, so characters outside it are lost.
type PDF struct {
	fontPath string
}

func NewPDF(fontPath string) *PDF {
	return &PDF{fontPath: fontPath}
}

func (p *PDF) Format(title, text string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.AddPage()

	fontName := pdfCoreFont
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if p.fontPath != "" {
		if _, err := os.Stat(p.fontPath); err == nil {
			pdf.AddUTF8Font(pdfFontName, "", p.fontPath)
			pdf.AddUTF8Font(pdfFontName, "B", p.fontPath)
			fontName = pdfFontName
			tr = func(s string) string { return s }
		} else {
			slog.Warn("PDF.Format: font not found, using core font", "path", p.fontPath)
		}
	}

	pdf.SetFont(fontName, "B", 18)
	pdf.MultiCell(0, 9, tr(title), "", "", false)
	pdf.Ln(4)

	for _, ln := range parseLines(text) {
		switch {
		case ln.heading:
			pdf.Ln(2)
			pdf.SetFont(fontName, "B", 14)
			pdf.MultiCell(0, 8, tr(ln.text), "", "", false)
		case ln.bullet:
			pdf.SetFont(fontName, "", 11)
			pdf.MultiCell(0, 6, tr("• "+ln.text), "", "", false)
		case ln.text == "":
			pdf.Ln(3)
		default:
			pdf.SetFont(fontName, "", 11)
			pdf.MultiCell(0, 6, tr(ln.text), "", "", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *PDF) ContentType() string {
	return pdfContentType
}

func (p *PDF) FileExtension() string {
	return pdfFileExtension
}
