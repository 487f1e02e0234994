package receipt

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// LayoutColumns pads or truncates each cell to its width. CJK characters
// occupy two cells on thermal printers.
func LayoutColumns(cols []Column) string {
	var b strings.Builder
	for _, c := range cols {
		text := strings.ReplaceAll(c.Text, "\n", " ")
		if runewidth.StringWidth(text) > c.Width {
			text = runewidth.Truncate(text, c.Width, "")
		}
		switch c.Align {
		case AlignRight:
			b.WriteString(runewidth.FillLeft(text, c.Width))
		case AlignCenter:
			pad := c.Width - runewidth.StringWidth(text)
			left := pad / 2
			b.WriteString(strings.Repeat(" ", left))
			b.WriteString(runewidth.FillRight(text, c.Width-left))
		default:
			b.WriteString(runewidth.FillRight(text, c.Width))
		}
	}
	return b.String()
}
