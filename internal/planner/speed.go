package planner

import "github.com/pressworks/cinch/internal/config"

// encodingSpeed picks the codec speed knob for a plan. HD output gets faster
// presets to keep encode times sane; sub-480p output can afford slower ones.
// AV1 (SVT) and VP9 use numeric knobs instead of named presets.
func encodingSpeed(outputShortSide int, codec config.Codec, extraQuality bool) string {
	hd := outputShortSide > 480

	switch codec {
	case config.CodecH264:
		if extraQuality {
			return "veryslow"
		}
		if hd {
			return "medium"
		}
		return "slower"
	case config.CodecHEVC:
		if extraQuality {
			return "veryslow"
		}
		if hd {
			return "medium"
		}
		return "slow"
	case config.CodecAV1:
		if extraQuality {
			return "4"
		}
		if hd {
			return "10"
		}
		return "8"
	case config.CodecVP9:
		// -cpu-used under -deadline good.
		if extraQuality {
			return "0"
		}
		if hd {
			return "2"
		}
		return "1"
	}
	return "medium"
}
