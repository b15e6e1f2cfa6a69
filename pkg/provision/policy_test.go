package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFriendlyURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/home", "/home"},
		{"home", "/home"},
		{"Home", "/home"},
		{"  My Pages  ", "/my-pages"},
		{"/nested/path/", "/nested/path"},
		{"", "/home"},
		{"///", "/home"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeFriendlyURL(tt.in), "input %q", tt.in)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.Private.Enabled)
	assert.True(t, p.Private.AutoCreate)
	assert.False(t, p.Private.PowerUserRequired)
	assert.Equal(t, "Welcome", p.Private.LayoutName)

	assert.False(t, p.Public.Enabled)
	assert.False(t, p.Public.AutoCreate)
}
