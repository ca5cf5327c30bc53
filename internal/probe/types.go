package probe

// SourceMetrics holds everything the planner needs to know about a source
// file. Produced once per file by [Probe]; treated as immutable downstream.
type SourceMetrics struct {
	Path       string
	Duration   float64 // Seconds. Always > 0 for a successful probe.
	Width      int
	Height     int
	FPS        float64 // Native framerate from the primary video stream.
	Rotation   int     // Display rotation in degrees from stream side data.
	FormatName string  // Container format (e.g. "mov,mp4,m4a,3gp,3g2,mj2").
	Size       int64   // Source file size in bytes.

	HasAudio     bool
	AudioBitrate int // Bits per second; 0 when the container does not report it.
}

// Portrait reports whether the video displays taller than wide, accounting
// for rotation metadata: a 1920x1080 stream rotated 90 degrees is portrait.
func (m *SourceMetrics) Portrait() bool {
	rotated := m.Rotation%180 != 0
	return (m.Width < m.Height) != rotated
}

// Pixels returns the stored frame area.
func (m *SourceMetrics) Pixels() int {
	return m.Width * m.Height
}
