// Package receipt turns a normalized order into printer directives.
package receipt

type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

type Kind string

const (
	KindPrepare Kind = "prepare"
	KindAlign   Kind = "align"
	KindFont    Kind = "font_size"
	KindBold    Kind = "bold"
	KindText    Kind = "text"
	KindColumns Kind = "columns"
	KindRule    Kind = "rule"
	KindFeed    Kind = "feed"
	KindCut     Kind = "cut"
)

// Column is one cell of a column-formatted row; Width is in printer
// character cells.
type Column struct {
	Text  string `json:"text"`
	Width int    `json:"width"`
	Align Align  `json:"align"`
}

// Directive is one primitive printer instruction. Only the fields
// relevant to Kind are set.
type Directive struct {
	Kind    Kind     `json:"kind"`
	Align   Align    `json:"align,omitempty"`
	Size    int      `json:"size,omitempty"`
	Bold    bool     `json:"bold,omitempty"`
	Text    string   `json:"text,omitempty"`
	Columns []Column `json:"columns,omitempty"`
	Lines   int      `json:"lines,omitempty"`
}

func Prepare() Directive            { return Directive{Kind: KindPrepare} }
func SetAlign(a Align) Directive    { return Directive{Kind: KindAlign, Align: a} }
func FontSize(size int) Directive   { return Directive{Kind: KindFont, Size: size} }
func Bold(on bool) Directive        { return Directive{Kind: KindBold, Bold: on} }
func Text(s string) Directive       { return Directive{Kind: KindText, Text: s} }
func Columns(c ...Column) Directive { return Directive{Kind: KindColumns, Columns: c} }
func Rule() Directive               { return Directive{Kind: KindRule} }
func Feed(n int) Directive          { return Directive{Kind: KindFeed, Lines: n} }
func Cut() Directive                { return Directive{Kind: KindCut} }
