package metadata

import (
	"strings"

	"golang.org/x/net/html"
)

// blockElements end a line of text when rendered as plain text.
var blockElements = map[string]bool{
	"p": true, "br": true, "div": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// PlainText strips the HTML markup RAWG uses in game descriptions.
// Paragraphs and line breaks become newlines; entities are decoded.
func PlainText(description string) string {
	if !strings.ContainsAny(description, "<&") {
		return strings.TrimSpace(description)
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(description))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseBlankLines(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockElements[string(name)] {
				b.WriteByte('\n')
			}
		}
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
