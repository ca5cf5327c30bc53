// Package planner turns (source metrics, compression request) into concrete
// encoder parameters, and corrects those parameters between attempts from
// the measured output size. All functions here are pure computation; the
// executor owns every side effect.
package planner

import (
	"errors"
	"fmt"

	"github.com/pressworks/cinch/internal/config"
	"github.com/pressworks/cinch/internal/probe"
)

// ErrInfeasible means the target size cannot be met: after reserving audio,
// the video bitrate falls below the floor where any encoder output is
// recognizable. Fatal for the file, never retried.
var ErrInfeasible = errors.New("target size infeasible")

// Tunable planning constants.
const (
	audioFloorBps      = 128_000 // Opus stereo, good quality.
	audioExtraBps      = 192_000 // Raised floor with --extra-quality.
	audioCrushBps      = 6_000   // Crush mode: speech-only mono Opus.
	monoCutoffBps      = 12_000  // Below this, mono beats stereo.
	minVideoBps        = 1_000   // Below this, give up as infeasible.
	overheadMargin     = 0.99    // Container/metadata headroom on video.
	crushFPSCap        = 24
	clarityMinHeight   = 720 // Auto policy allows 60 fps only at or above this rung.
	maxCorrectionRatio = 2.0 // Per-attempt bitrate step clamp, both directions.
	minCorrectionRatio = 0.5
	oversizePenalty    = 0.05 // Extra pull-down when an attempt overshot.
)

// crushThresholdKbps is the total bitrate under which crush mode engages:
// the 240p rung floor plus the default audio floor. Below it, the only way
// to keep the video off the 144p rung is to gut the audio and cap framerate.
const crushThresholdKbps = 150 + audioFloorBps/1000

// Initial computes the first encoding plan from the bit budget:
// target bits spread over the duration, minus the audio reservation,
// shaped by the framerate policy and the resolution ladder.
func Initial(m *probe.SourceMetrics, req *Request) (*Plan, error) {
	totalBps := float64(req.TargetBytes*8) / m.Duration

	crush := totalBps/1000 < crushThresholdKbps
	audioBps := audioReservation(req, crush)

	videoBps := int((totalBps - float64(audioBps)) * overheadMargin)
	if videoBps < minVideoBps {
		return nil, fmt.Errorf("%w: %d bps video after audio reservation", ErrInfeasible, videoBps)
	}

	fpsCap := framerateCap(videoBps, m, req, crush)
	effFPS := int(m.FPS + 0.5)
	if fpsCap > 0 && fpsCap < effFPS {
		effFPS = fpsCap
	}

	r := selectRung(videoBps, m, req.Codec, effFPS)
	w, h := scaleDims(m, r)

	plan := &Plan{
		VideoBitrate:  videoBps,
		AudioBitrate:  audioBps,
		Width:         w,
		Height:        h,
		FPSCap:        fpsCap,
		Codec:         req.Codec,
		Preset:        encodingSpeed(min(w, h), req.Codec, req.ExtraQuality),
		AudioChannels: audioChannels(audioBps),
		Passes:        2,
		Crush:         crush,
		RungFloorKbps: r.floorKbps,
	}
	return plan, nil
}

// Correct derives the next plan from the latest attempt's measured size.
// Output size is near-linear in bitrate at a fixed resolution and framerate,
// so a proportional step on the measured ratio converges much faster than
// bisection. The step is clamped to avoid oscillation, and an overshoot
// gets pulled an extra notch below the proportional point so the loop does
// not hover above the target.
func Correct(prior *Plan, actualSize int64, m *probe.SourceMetrics, req *Request) (*Plan, error) {
	if actualSize <= 0 {
		return nil, fmt.Errorf("%w: attempt produced no measurable output", ErrInfeasible)
	}

	ratio := float64(req.TargetBytes) / float64(actualSize)
	if actualSize > req.TargetBytes {
		ratio -= oversizePenalty
	}
	if ratio > maxCorrectionRatio {
		ratio = maxCorrectionRatio
	}
	if ratio < minCorrectionRatio {
		ratio = minCorrectionRatio
	}

	videoBps := int(float64(prior.VideoBitrate) * ratio)
	if videoBps < minVideoBps {
		return nil, fmt.Errorf("%w: corrected video bitrate %d bps below floor", ErrInfeasible, videoBps)
	}

	next := *prior
	next.VideoBitrate = videoBps

	// Hold resolution and framerate while the bitrate still clears the
	// current rung's artifact threshold; otherwise step the resolution down.
	if effectiveKbps(videoBps, req.Codec) < float64(prior.RungFloorKbps) {
		effFPS := int(m.FPS + 0.5)
		if next.FPSCap > 0 && next.FPSCap < effFPS {
			effFPS = next.FPSCap
		}
		r := selectRung(videoBps, m, req.Codec, effFPS)
		next.Width, next.Height = scaleDims(m, r)
		next.RungFloorKbps = r.floorKbps
		next.Preset = encodingSpeed(min(next.Width, next.Height), req.Codec, req.ExtraQuality)
	}

	return &next, nil
}

// audioReservation picks the audio bitrate floor for the request.
func audioReservation(req *Request, crush bool) int {
	if crush {
		return audioCrushBps
	}
	if req.ExtraQuality {
		return audioExtraBps
	}
	return audioFloorBps
}

func audioChannels(audioBps int) int {
	if audioBps < monoCutoffBps {
		return 1
	}
	return 2
}

// framerateCap resolves the output framerate cap. Sources at or below 30
// fps always keep their native rate; crush mode overrides every policy with
// a 24 fps cap to fight block artifacting at starvation bitrates.
func framerateCap(videoBps int, m *probe.SourceMetrics, req *Request, crush bool) int {
	if crush {
		return crushFPSCap
	}
	if m.FPS <= 30 {
		return 0
	}

	switch req.Framerate {
	case config.FrameratePreferClear:
		return 30
	case config.FrameratePreferSmooth:
		return 60
	default: // FramerateAuto
		rung30 := selectRung(videoBps, m, req.Codec, 30)
		rung60 := selectRung(videoBps, m, req.Codec, 60)
		// 60 fps is only worth it when it costs no resolution rung and the
		// result stays sharp enough for the doubled frame cost.
		if rung30.height == rung60.height && rung30.height >= clarityMinHeight {
			return 60
		}
		return 30
	}
}
