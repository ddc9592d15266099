package report

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	markdownContentType   = "text/markdown; charset=utf-8"
	markdownFileExtension = ".md"
)

type Markdown struct{}

func NewMarkdown() *Markdown {
	return &Markdown{}
}

func (m *Markdown) Format(title, text string) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n%s\n", title, strings.TrimRight(text, "\n"))
	return buf.Bytes(), nil
}

func (m *Markdown) ContentType() string {
	return markdownContentType
}

func (m *Markdown) FileExtension() string {
	return markdownFileExtension
}
