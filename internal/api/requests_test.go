package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointsTag(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"10", true},
		{"10.5", true},
		{"10.25", true},
		{"10.255", false},
		{"-1", false},
		{"ten", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := validate.Var(tt.in, "points")
			assert.Equal(t, tt.want, err == nil, "points(%q): %v", tt.in, err)
		})
	}
}
