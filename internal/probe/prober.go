// Package probe extracts source media metrics via ffprobe. One JSON call
// returns format and stream data together, replacing the five separate
// ffprobe invocations (duration, resolution, framerate, rotation, frame
// count) the tool would otherwise need per file.
package probe

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Probe runs a single ffprobe JSON call against path and returns the parsed
// source metrics. Failures are classified into the package sentinels: a
// spawn or read failure is ErrUnreadable, a file without a usable video
// track is ErrNoVideoStream, and missing duration or dimensions are
// ErrMalformedMetadata.
func Probe(ctx context.Context, path string) (*SourceMetrics, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &Error{Path: path, Sentinel: ErrUnreadable, Cause: err}
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, &Error{Path: path, Sentinel: ErrUnreadable, Cause: err}
	}

	return ParseJSON(path, out)
}

// ParseJSON converts raw ffprobe JSON output into SourceMetrics. Exported
// for testing without a real ffprobe binary.
func ParseJSON(path string, data []byte) (*SourceMetrics, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Path: path, Sentinel: ErrMalformedMetadata, Cause: err}
	}
	return buildMetrics(path, &raw)
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

type ffprobeStream struct {
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	BitRate      string            `json:"bit_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	RFrameRate   string            `json:"r_frame_rate"`
	Duration     string            `json:"duration"`
	Disposition  map[string]int    `json:"disposition"`
	SideDataList []ffprobeSideData `json:"side_data_list"`
}

type ffprobeSideData struct {
	SideDataType string          `json:"side_data_type"`
	Rotation     json.RawMessage `json:"rotation"`
}

// --- Conversion from wire types to domain metrics ---

func buildMetrics(path string, raw *ffprobeOutput) (*SourceMetrics, error) {
	m := &SourceMetrics{
		Path:       path,
		FormatName: raw.Format.FormatName,
		Duration:   parseFloat(raw.Format.Duration),
		Size:       parseInt64(raw.Format.Size),
	}

	var video *ffprobeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			// Cover art embedded as an attached picture is not a playable
			// video track.
			if s.Disposition["attached_pic"] == 1 {
				continue
			}
			if video == nil {
				video = s
			}
		case "audio":
			if !m.HasAudio {
				m.HasAudio = true
				m.AudioBitrate = int(parseInt64(s.BitRate))
			}
		}
	}

	if video == nil {
		return nil, &Error{Path: path, Sentinel: ErrNoVideoStream}
	}

	m.Width = video.Width
	m.Height = video.Height
	m.FPS = parseFraction(video.AvgFrameRate)
	if m.FPS <= 0 {
		m.FPS = parseFraction(video.RFrameRate)
	}
	m.Rotation = parseRotation(video.SideDataList)

	// Some containers only report duration on the stream.
	if m.Duration <= 0 {
		m.Duration = parseFloat(video.Duration)
	}

	if m.Duration <= 0 || m.Width <= 0 || m.Height <= 0 || m.FPS <= 0 {
		return nil, &Error{Path: path, Sentinel: ErrMalformedMetadata}
	}
	return m, nil
}

// parseFraction parses ffprobe rate strings like "30000/1001" or "25/1".
// Returns 0 on malformed input or a zero denominator.
func parseFraction(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return parseFloat(s)
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// parseRotation extracts display rotation from stream side data, normalized
// to [0, 360). ffprobe reports it as a number or a quoted string depending
// on version, so both forms are accepted.
func parseRotation(sideData []ffprobeSideData) int {
	for _, sd := range sideData {
		if !strings.EqualFold(sd.SideDataType, "Display Matrix") || sd.Rotation == nil {
			continue
		}
		raw := strings.Trim(string(sd.Rotation), `"`)
		deg, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		r := int(deg) % 360
		if r < 0 {
			r += 360
		}
		return r
	}
	return 0
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
