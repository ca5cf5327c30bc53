package encoder

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pressworks/cinch/internal/config"
	"github.com/pressworks/cinch/internal/planner"
)

// Encoder libraries by codec.
var codecLibs = map[config.Codec]string{
	config.CodecH264: "libx264",
	config.CodecHEVC: "libx265",
	config.CodecAV1:  "libsvtav1",
	config.CodecVP9:  "libvpx-vp9",
}

// Build constructs the complete ffmpeg argument slice for one pass of one
// attempt. Pass 1 analyzes only: audio disabled, output discarded. Pass 2
// writes the real file with the Opus audio track.
//
// The passLog prefix must be unique per attempt so that concurrent jobs
// (and successive attempts) never collide on the two-pass stats files.
func Build(plan *planner.Plan, source, output, passLog string, pass int) []string {
	args := make([]string, 0, 40)

	// --- Preamble ---
	args = append(args, "ffmpeg", "-hide_banner", "-nostdin", "-y",
		"-loglevel", "error",
		"-progress", "pipe:1",
	)

	// --- Input ---
	args = append(args, "-i", source)

	// --- Geometry and framerate ---
	args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", plan.Width, plan.Height))
	if plan.FPSCap > 0 {
		args = append(args, "-r", strconv.Itoa(plan.FPSCap))
	}

	// --- Video codec ---
	args = append(args, "-c:v", codecLibs[plan.Codec])
	switch plan.Codec {
	case config.CodecH264:
		args = append(args, "-profile:v", "main", "-preset", plan.Preset)
	case config.CodecHEVC:
		args = append(args, "-preset", plan.Preset)
	case config.CodecAV1:
		args = append(args, "-preset", plan.Preset)
	case config.CodecVP9:
		args = append(args, "-deadline", "good", "-cpu-used", plan.Preset, "-row-mt", "1")
	}
	args = append(args,
		"-b:v", strconv.Itoa(plan.VideoBitrate),
		"-passlogfile", passLog,
		"-pass", strconv.Itoa(pass),
	)

	// --- Audio and output ---
	if pass == 1 {
		args = append(args, "-an", "-f", "null", os.DevNull)
		return args
	}
	args = append(args,
		"-c:a", "libopus",
		"-b:a", strconv.Itoa(plan.AudioBitrate),
		"-ac", strconv.Itoa(plan.AudioChannels),
	)
	muxer, faststart := muxerFor(output)
	args = append(args, "-f", muxer)
	// faststart is an mp4/mov muxer option; other muxers reject it.
	if faststart {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, output)
}

// muxerFor picks the output container from the destination extension. The
// muxer is passed explicitly because attempts encode to a ".part" staging
// name ffmpeg could not infer a format from; that suffix is stripped so a
// staged encode gets the same muxer as its final name.
func muxerFor(output string) (muxer string, faststart bool) {
	name := strings.TrimSuffix(strings.ToLower(output), ".part")
	switch filepath.Ext(name) {
	case ".webm":
		return "webm", false
	case ".mkv":
		return "matroska", false
	case ".mov":
		return "mov", true
	default: // .mp4, .m4v, and anything unrecognized.
		return "mp4", true
	}
}
