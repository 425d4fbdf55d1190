package svg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

func EscapeText(text string) string {
	buf := new(bytes.Buffer)
	_ = xml.EscapeText(buf, []byte(text))
	return buf.String()
}

// RenderText escapes text for a <text> element at x, breaking newlines into tspans
// lineHeight apart.
func RenderText(text string, x, lineHeight float64) string {
	if !strings.Contains(text, "\n") {
		return EscapeText(text)
	}
	lines := strings.Split(text, "\n")
	rendered := make([]string, 0, len(lines))
	for i, line := range lines {
		dy := lineHeight
		if i == 0 {
			dy = 0
		}
		escaped := EscapeText(line)
		if escaped == "" {
			// empty tspans collapse
			escaped = " "
		}
		rendered = append(rendered, fmt.Sprintf(`<tspan x="%v" dy="%v">%s</tspan>`, x, dy, escaped))
	}
	return strings.Join(rendered, "")
}
