package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{"gigabytes with fraction", "4.5 GB", 4831838208},
		{"megabytes", "500 MB", 524288000},
		{"terabytes with fraction", "1.2 TB", 1319413953331},
		{"kilobytes", "1024 KB", 1048576},
		{"plain bytes", "512 B", 512},
		{"comma decimal separator", "1,5 GB", 1610612736},
		{"no space before unit", "700MB", 734003200},
		{"binary unit suffix", "2 GiB", 2147483648},
		{"lowercase unit", "4.5 gb", 4831838208},
		{"surrounding whitespace", "  300 MB  ", 314572800},
		{"empty string", "", 0},
		{"no unit", "4.5", 0},
		{"garbage", "unknown", 0},
		{"unit only", "GB", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSize(tt.input))
		})
	}
}
