package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"no markup", "  Just text.  ", "Just text."},
		{"paragraphs", "<p>First.</p>\n<p>Second.</p>", "First.\nSecond."},
		{"line break", "Line one<br />Line two", "Line one\nLine two"},
		{"entities", "<p>Tom &amp; Jerry&#39;s</p>", "Tom & Jerry's"},
		{"inline tags", "<p>A <strong>bold</strong> move</p>", "A bold move"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}
