package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{999, "999 B"},
		{1000, "1.00 KB"},
		{1536, "1.54 KB"},
		{999_999, "1000.00 KB"},
		{1_000_000, "1.00 MB"},
		{2_500_000, "2.50 MB"},
		{1_000_000_000, "1.00 GB"},
		{1_200_000_000, "1.20 GB"},
		{5_000_000_000_000, "5000.00 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSize(tt.in))
		})
	}
}
