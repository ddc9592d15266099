// Package report exports questionnaire analyses as downloadable documents.
package report

import (
	"fmt"
	"strings"
)

// Supported export formats
const (
	FormatMarkdown = "md"
	FormatPDF      = "pdf"
	FormatDOCX     = "docx"
)

// Formatter renders a titled Markdown-ish text into a document.
type Formatter interface {
	Format(title, text string) ([]byte, error)
	ContentType() string
	FileExtension() string
}

// Opts holds formatter settings.
type Opts struct {
	FontPath string // UTF-8 TTF used by the PDF formatter
}

// Option configures the Factory.
type Option func(*Opts)

// WithFontPath sets a UTF-8 TrueType font for PDF output.
func WithFontPath(path string) Option {
	return func(o *Opts) {
		o.FontPath = path
	}
}

// Factory builds formatters by format name.
type Factory struct {
	opts Opts
}

// NewFactory creates a Factory.
func NewFactory(opts ...Option) *Factory {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Factory{opts: cfg}
}

// Create returns the formatter for format. An empty format means Markdown.
func (f *Factory) Create(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", FormatMarkdown, "markdown":
		return NewMarkdown(), nil
	case FormatPDF:
		return NewPDF(f.opts.FontPath), nil
	case FormatDOCX:
		return NewDOCX(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// line is one parsed line of the report text.
type line struct {
	heading bool
	bullet  bool
	text    string
}

// parseLines strips the light Markdown used by reports into plain lines.
func parseLines(text string) []line {
	var out []line
	for _, raw := range strings.Split(text, "\n") {
		l := strings.TrimRight(raw, " \t\r")
		var ln line
		switch {
		case strings.HasPrefix(l, "#"):
			ln.heading = true
			l = strings.TrimSpace(strings.TrimLeft(l, "#"))
		case strings.HasPrefix(l, "- "), strings.HasPrefix(l, "• "):
			ln.bullet = true
			l = strings.TrimSpace(l[strings.Index(l, " ")+1:])
		}
		ln.text = strings.ReplaceAll(l, "**", "")
		out = append(out, ln)
	}
	return out
}
