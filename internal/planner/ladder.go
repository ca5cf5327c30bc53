package planner

import (
	"github.com/pressworks/cinch/internal/config"
	"github.com/pressworks/cinch/internal/probe"
)

// Bitrate-to-resolution ladders, from the VP9 VOD recommendations
// (https://developers.google.com/media/vp9/settings/vod). Each rung names
// the lowest bitrate (kbps) at which that resolution still looks acceptable;
// below it, blocking artifacts outweigh the extra pixels and the next rung
// down gives better perceived quality. 60 fps material needs roughly 1.5x
// the bitrate to hold the same rung.
type rung struct {
	floorKbps int
	width     int
	height    int
}

var ladder30 = []rung{
	{12000, 3840, 2160},
	{6000, 2560, 1440},
	{1800, 1920, 1080},
	{1024, 1280, 720},
	{512, 640, 480},
	{276, 640, 360},
	{150, 320, 240},
	{0, 192, 144},
}

var ladder60 = []rung{
	{18000, 3840, 2160},
	{9000, 2560, 1440},
	{3000, 1920, 1080},
	{1800, 1280, 720},
	{750, 640, 480},
	{276, 640, 360},
	{150, 320, 240},
	{0, 192, 144},
}

// Codec efficiency relative to H.264: the fraction of H.264's bitrate the
// codec needs for equivalent quality. Applied to the ladder thresholds, so
// efficient codecs hold higher resolutions at the same bitrate. Tunable
// constants, not contracts.
var codecEfficiency = map[config.Codec]float64{
	config.CodecH264: 1.0,
	config.CodecHEVC: 0.75,
	config.CodecVP9:  0.85,
	config.CodecAV1:  0.65,
}

// effectiveKbps converts a raw video bitrate into H.264-equivalent kbps for
// ladder threshold comparison.
func effectiveKbps(videoBps int, codec config.Codec) float64 {
	eff := codecEfficiency[codec]
	if eff <= 0 {
		eff = 1.0
	}
	return float64(videoBps) / 1000 / eff
}

// ladderFor picks the 30 fps or 60 fps ladder based on the output framerate.
func ladderFor(fps int) []rung {
	if fps > 30 {
		return ladder60
	}
	return ladder30
}

// selectRung returns the largest rung whose bitrate floor is met and that
// does not upscale the source. Sources smaller than the bottom rung keep
// their native size, so the resolution floor degrades quality rather than
// failing the plan.
func selectRung(videoBps int, m *probe.SourceMetrics, codec config.Codec, fps int) rung {
	eff := effectiveKbps(videoBps, codec)
	src := m.Pixels()
	for _, r := range ladderFor(fps) {
		if eff >= float64(r.floorKbps) && src >= r.width*r.height {
			return r
		}
	}
	// Source is smaller than 144p; keep it as is.
	return rung{floorKbps: 0, width: m.Width, height: m.Height}
}

// scaleDims computes the output dimensions for a rung: the display short
// side becomes the rung height, the long side follows the aspect ratio,
// both rounded to even as the encoders require. Never upscales.
func scaleDims(m *probe.SourceMetrics, r rung) (w, h int) {
	dw, dh := m.Width, m.Height
	if m.Rotation%180 != 0 {
		dw, dh = dh, dw
	}

	short := dh
	if dw < dh {
		short = dw
	}
	if r.height >= short {
		return roundEven(dw), roundEven(dh)
	}

	scale := float64(r.height) / float64(short)
	if m.Portrait() {
		// The short side is the width.
		return roundEven(float64(r.height)), roundEven(float64(dh) * scale)
	}
	return roundEven(float64(dw) * scale), roundEven(float64(r.height))
}

func roundEven[T int | float64](v T) int {
	return int(float64(v)/2+0.5) * 2
}
