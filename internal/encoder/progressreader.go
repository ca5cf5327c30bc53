package encoder

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pressworks/cinch/internal/progress"
)

// progressReader converts the key=value lines ffmpeg writes to
// `-progress pipe:1` into overall-attempt progress samples. An attempt spans
// multiple passes; the overall fraction folds the completed passes in, so a
// two-pass encode reads 0..0.5 during pass 1 and 0.5..1.0 during pass 2.
type progressReader struct {
	duration float64 // Source duration in seconds.
	passes   int
	pass     int // 1-based current pass.
	started  time.Time
	sink     progress.SampleFunc
}

// consume reads progress lines until EOF, pushing a sample to the sink for
// every out_time update ffmpeg emits (roughly twice a second).
func (p *progressReader) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if sample, ok := p.handleLine(scanner.Text()); ok && p.sink != nil {
			p.sink(sample)
		}
	}
}

// handleLine parses one progress line. Only out_time updates produce a
// sample; all other keys (frame, fps, bitrate, progress=continue) are
// ignored. Depending on the ffmpeg version the elapsed output time arrives
// as out_time_us or out_time_ms; both carry microseconds.
func (p *progressReader) handleLine(line string) (progress.Sample, bool) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return progress.Sample{}, false
	}

	var outSeconds float64
	switch key {
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(val, 10, 64)
		if err != nil || us < 0 {
			return progress.Sample{}, false
		}
		outSeconds = float64(us) / 1e6
	case "progress":
		if val != "end" {
			return progress.Sample{}, false
		}
		outSeconds = p.duration
	default:
		return progress.Sample{}, false
	}

	passFrac := outSeconds / p.duration
	if passFrac > 1 {
		passFrac = 1
	}
	overall := (float64(p.pass-1) + passFrac) / float64(p.passes)

	return progress.Sample{
		Fraction: overall,
		ETA:      p.eta(overall),
		Pass:     p.pass,
	}, true
}

// eta extrapolates remaining time from the elapsed wall clock and the
// overall fraction. Early samples are too noisy to trust, so the first
// percent reports unknown (-1).
func (p *progressReader) eta(overall float64) time.Duration {
	if overall < 0.01 {
		return -1
	}
	elapsed := time.Since(p.started)
	return time.Duration(float64(elapsed) * (1 - overall) / overall)
}
