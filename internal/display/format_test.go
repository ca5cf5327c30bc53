package display

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1000, "1.0 kB"},
		{25_000_000, "25.0 MB"},
		{1_500_000_000, "1.5 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestFormatBitrate(t *testing.T) {
	assert.Equal(t, "96 kbps", FormatBitrate(96_000))
	assert.Equal(t, "1.5 Mbps", FormatBitrate(1_540_000))
	assert.Equal(t, "6 kbps", FormatBitrate(6_000))
}

func TestFormatETA(t *testing.T) {
	assert.Equal(t, "--", FormatETA(-time.Second))
	assert.Equal(t, "35s", FormatETA(35*time.Second))
	assert.Equal(t, "4m10s", FormatETA(4*time.Minute+10*time.Second))
	assert.Equal(t, "1h02m", FormatETA(time.Hour+2*time.Minute))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "0%", FormatPercent(-0.2))
	assert.Equal(t, "50%", FormatPercent(0.5))
	assert.Equal(t, "100%", FormatPercent(1.7))
}
