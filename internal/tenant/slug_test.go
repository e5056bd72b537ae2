package tenant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Acme Marketing", "acme-marketing"},
		{"  Spaced   Out  ", "spaced-out"},
		{"Café Ação", "cafe-acao"},
		{"snake_case_name", "snake-case-name"},
		{"Already-Hyphenated", "already-hyphenated"},
		{"Symbols!@#$", "symbols"},
		{"123 Numbers", "123-numbers"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Slugify(tc.in), tc.in)
	}
}

func TestSlugifyCapsLength(t *testing.T) {
	long := strings.Repeat("organization ", 20)
	slug := Slugify(long)
	assert.LessOrEqual(t, len(slug), maxSlugLen)
	assert.NotEmpty(t, slug)
	assert.False(t, strings.HasSuffix(slug, "-"))
}
