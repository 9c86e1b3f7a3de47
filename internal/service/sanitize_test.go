package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "  Fee schedule  ", "Fee schedule"},
		{"typed entities stay as typed", "use &lt;b&gt; tags", "use &lt;b&gt; tags"},
		{"tags are stripped", "<b>bold</b> text", "bold text"},
		{"scripts are dropped", "<script>alert(1)</script>Fees & <b>charges</b>", "Fees & charges"},
		{"lone angle bracket", "a < b", "a < b"},
		{"escaped markup next to tags", "&lt;i&gt;<b>x</b>", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := sanitizeText(tt.in)
			assert.Equal(t, tt.want, once)
			assert.Equal(t, once, sanitizeText(once), "saving the stored value again must not change it")
		})
	}
}
