package encoder

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressworks/cinch/internal/progress"
)

func TestProgressReaderPassOne(t *testing.T) {
	var samples []progress.Sample
	pr := &progressReader{
		duration: 100,
		passes:   2,
		pass:     1,
		started:  time.Now(),
		sink:     func(s progress.Sample) { samples = append(samples, s) },
	}

	pr.consume(strings.NewReader(
		"frame=120\n" +
			"fps=60.1\n" +
			"out_time_us=25000000\n" +
			"progress=continue\n" +
			"out_time_us=50000000\n" +
			"progress=continue\n",
	))

	require.Len(t, samples, 2)
	// 25s of 100s during pass 1 of 2 is 12.5% overall.
	assert.InDelta(t, 0.125, samples[0].Fraction, 1e-9)
	assert.InDelta(t, 0.25, samples[1].Fraction, 1e-9)
	assert.Equal(t, 1, samples[0].Pass)
}

func TestProgressReaderPassTwo(t *testing.T) {
	var samples []progress.Sample
	pr := &progressReader{
		duration: 100,
		passes:   2,
		pass:     2,
		started:  time.Now(),
		sink:     func(s progress.Sample) { samples = append(samples, s) },
	}

	pr.consume(strings.NewReader("out_time_us=50000000\nprogress=end\n"))

	require.Len(t, samples, 2)
	assert.InDelta(t, 0.75, samples[0].Fraction, 1e-9)
	// progress=end completes the pass.
	assert.InDelta(t, 1.0, samples[1].Fraction, 1e-9)
}

func TestProgressReaderOutTimeMsVariant(t *testing.T) {
	// Older ffmpeg builds label the microsecond counter out_time_ms.
	pr := &progressReader{duration: 10, passes: 1, pass: 1, started: time.Now()}

	sample, ok := pr.handleLine("out_time_ms=5000000")
	require.True(t, ok)
	assert.InDelta(t, 0.5, sample.Fraction, 1e-9)
}

func TestProgressReaderClampsOvershoot(t *testing.T) {
	// out_time can exceed the probed duration on VFR sources.
	pr := &progressReader{duration: 10, passes: 2, pass: 1, started: time.Now()}

	sample, ok := pr.handleLine("out_time_us=12000000")
	require.True(t, ok)
	assert.InDelta(t, 0.5, sample.Fraction, 1e-9)
}

func TestProgressReaderIgnoresNoise(t *testing.T) {
	pr := &progressReader{duration: 10, passes: 1, pass: 1, started: time.Now()}

	for _, line := range []string{
		"frame=42",
		"progress=continue",
		"out_time=00:00:05.000000",
		"out_time_us=bogus",
		"out_time_us=-1",
		"not a key value line",
		"",
	} {
		_, ok := pr.handleLine(line)
		assert.False(t, ok, "line %q should not produce a sample", line)
	}
}

func TestProgressReaderETA(t *testing.T) {
	pr := &progressReader{
		duration: 100,
		passes:   1,
		pass:     1,
		started:  time.Now().Add(-10 * time.Second),
	}

	sample, ok := pr.handleLine("out_time_us=50000000")
	require.True(t, ok)
	// Half done after 10s leaves roughly 10s.
	assert.InDelta(t, 10, sample.ETA.Seconds(), 0.5)

	// Below one percent the estimate is unknown.
	sample, ok = pr.handleLine("out_time_us=100000")
	require.True(t, ok)
	assert.Equal(t, time.Duration(-1), sample.ETA)
}
