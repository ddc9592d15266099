package report

import (
	"bytes"

	"github.com/unidoc/unioffice/document"
)

const (
	docxContentType   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	docxFileExtension = ".docx"
)

type DOCX struct{}

func NewDOCX() *DOCX {
	return &DOCX{}
}

func (d *DOCX) Format(title, text string) ([]byte, error) {
	doc := document.New()
	defer doc.Close()

	titlePar := doc.AddParagraph()
	titlePar.SetStyle("Heading1")
	titlePar.AddRun().AddText(title)

	for _, ln := range parseLines(text) {
		if ln.text == "" {
			continue
		}
		par := doc.AddParagraph()
		switch {
		case ln.heading:
			par.SetStyle("Heading2")
			par.AddRun().AddText(ln.text)
		case ln.bullet:
			par.AddRun().AddText("• " + ln.text)
		default:
			par.AddRun().AddText(ln.text)
		}
	}

	var buf bytes.Buffer
	if err := doc.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *DOCX) ContentType() string {
	return docxContentType
}

func (d *DOCX) FileExtension() string {
	return docxFileExtension
}
