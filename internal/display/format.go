// Package display holds human-readable formatting helpers shared by the CLI
// output paths (log lines, progress line, batch summary).
package display

import (
	"fmt"
	"time"
)

// FormatBytes returns a human-readable size using decimal units (kB, MB, GB),
// matching how the target size is specified on the command line.
func FormatBytes(bytes int64) string {
	const unit = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	suffixes := []string{"kB", "MB", "GB", "TB", "PB"}
	if exp >= len(suffixes) {
		exp = len(suffixes) - 1
		div = 1
		for i := 0; i <= exp; i++ {
			div *= unit
		}
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), suffixes[exp])
}

// FormatBitrate returns a short label for a bitrate in bits per second
// (e.g. "96 kbps", "1.5 Mbps").
func FormatBitrate(bps int) string {
	kbps := (bps + 500) / 1000
	if kbps < 1000 {
		return fmt.Sprintf("%d kbps", kbps)
	}
	return fmt.Sprintf("%.1f Mbps", float64(kbps)/1000)
}

// FormatETA renders a remaining-time estimate as "1h02m", "4m10s" or "35s".
// Negative or unknown durations render as "--".
func FormatETA(d time.Duration) string {
	if d < 0 {
		return "--"
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatPercent renders a 0..1 fraction as a whole percentage, clamped.
func FormatPercent(frac float64) string {
	pct := int(frac*100 + 0.5)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return fmt.Sprintf("%d%%", pct)
}
