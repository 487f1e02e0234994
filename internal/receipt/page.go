package receipt

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// Line is one rendered row of a Page with the style that was active when
// it was printed.
type Line struct {
	Text  string
	Size  int
	Bold  bool
	Align Align
	Rule  bool
}

// Page accumulates directives the way a printer would, keeping style state
// between them. Drivers that compose a whole page before printing and the
// receipt preview both use it.
type Page struct {
	Width int
	Lines []Line
	Cut   bool

	align Align
	size  int
	bold  bool
}

func NewPage(width int) *Page {
	if width <= 0 {
		width = LineWidth
	}
	p := &Page{Width: width}
	p.Reset()
	return p
}

// Reset clears content and restores the default style.
func (p *Page) Reset() {
	p.Lines = nil
	p.Cut = false
	p.resetStyle()
}

func (p *Page) resetStyle() {
	p.align = AlignLeft
	p.size = SizeItemSub
	p.bold = false
}

func (p *Page) emit(text string) {
	p.Lines = append(p.Lines, Line{Text: text, Size: p.size, Bold: p.bold, Align: p.align})
}

// Apply executes one directive against the page.
func (p *Page) Apply(d Directive) error {
	switch d.Kind {
	case KindPrepare:
		p.resetStyle()
	case KindAlign:
		p.align = d.Align
	case KindFont:
		p.size = d.Size
	case KindBold:
		p.bold = d.Bold
	case KindText:
		for _, ln := range strings.Split(d.Text, "\n") {
			p.emit(ln)
		}
	case KindColumns:
		p.emit(LayoutColumns(d.Columns))
	case KindRule:
		p.Lines = append(p.Lines, Line{Rule: true, Text: strings.Repeat("-", p.Width), Size: p.size})
	case KindFeed:
		for i := 0; i < d.Lines; i++ {
			p.emit("")
		}
	case KindCut:
		p.Cut = true
	default:
		return fmt.Errorf("unknown directive %q", d.Kind)
	}
	return nil
}

// Preview applies a whole directive sequence to a fresh page.
func Preview(ds []Directive) (*Page, error) {
	p := NewPage(LineWidth)
	for _, d := range ds {
		if err := p.Apply(d); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// String renders the page as plain monospace text.
func (p *Page) String() string {
	var b strings.Builder
	for _, ln := range p.Lines {
		b.WriteString(ln.Text)
		b.WriteByte('\n')
	}
	if p.Cut {
		b.WriteString("--- cut ---\n")
	}
	return b.String()
}

var pageTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { margin: 0; background: #fff; }
  .paper { width: {{.PixelWidth}}px; padding: 8px 0; font-family: "Noto Sans Mono CJK SC", "Courier New", monospace; color: #000; }
  .line { white-space: pre; line-height: 1.25; }
  .bold { font-weight: bold; }
  .rule { border-top: 2px solid #000; margin: 6px 0; height: 0; }
  .cut { border-top: 1px dashed #999; margin-top: 12px; }
</style>
</head>
<body>
<div class="paper">
{{- range .Lines}}
{{- if .Rule}}
  <div class="rule"></div>
{{- else}}
  <div class="line{{if .Bold}} bold{{end}}" style="font-size: {{.Size}}px; text-align: {{.Align}}">{{if .Text}}{{.Text}}{{else}}&nbsp;{{end}}</div>
{{- end}}
{{- end}}
{{- if .Cut}}
  <div class="cut"></div>
{{- end}}
</div>
</body>
</html>
`))

// HTML renders the page for a browser; pixelWidth is the paper width in dots.
func (p *Page) HTML(pixelWidth int) (string, error) {
	if pixelWidth <= 0 {
		pixelWidth = 384
	}
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		PixelWidth int
		Lines      []Line
		Cut        bool
	}{pixelWidth, p.Lines, p.Cut})
	if err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
