package random

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLetters(t *testing.T) {
	tests := []struct {
		name   string
		length uint
	}{
		{
			name:   "zero length",
			length: 0,
		},
		{
			name:   "20 length database name",
			length: 20,
		},
		{
			name:   "64 length",
			length: 64,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Letters(tt.length)
			require.NoError(t, err)
			require.Len(t, got, int(tt.length))
			require.Empty(t, strings.Trim(got, string(allowedLetters)), "only letters expected")
		})
	}
}
