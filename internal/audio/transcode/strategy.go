package transcode

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/voxkeeper/internal/audio/sizemodel"
	"github.com/gabriel-vasile/mimetype"
)

// Strategy is the container class of an input, which fixes how it is
// transcoded.
type Strategy int

const (
	// StrategyDirect feeds the bytes straight to the general encoder.
	StrategyDirect Strategy = iota
	// StrategyResample decodes to PCM first, then re-encodes.
	StrategyResample
)

func (s Strategy) String() string {
	if s == StrategyResample {
		return "decode-resample"
	}
	return "direct"
}

// sniff replaces a missing or generic declared type with the one detected
// from the content.
func sniff(mimeType string, data []byte) string {
	if mimeType != "" && mimeType != "application/octet-stream" {
		return mimeType
	}
	if len(data) == 0 {
		return mimeType
	}
	mt, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return strings.TrimSpace(mt)
}

// Classify picks the strategy for a normalized MIME type. Containers the
// general encoder parses reliably go direct; recorder containers and unknown
// inputs are decoded first.
func Classify(mimeType string) Strategy {
	switch mimeType {
	case "audio/mpeg", "audio/mp3", "audio/mp4", "audio/x-m4a", "audio/m4a", "audio/aac",
		"audio/wav", "audio/x-wav", "audio/wave", "audio/flac", "audio/x-flac", "audio/ogg",
		"video/mp4", "video/quicktime":
		return StrategyDirect
	default:
		return StrategyResample
	}
}

// Rung is one step of the degradation ladder.
type Rung int

const (
	// RungNone marks output that needed no encoder pass.
	RungNone Rung = iota - 1
	RungFull
	RungReduced
	RungMinimal
)

// Ladder is the fixed order rungs are attempted in.
var Ladder = []Rung{RungFull, RungReduced, RungMinimal}

func (r Rung) String() string {
	switch r {
	case RungFull:
		return "full"
	case RungReduced:
		return "reduced"
	case RungNone:
		return "none"
	default:
		return "minimal"
	}
}

// args builds the encoder arguments for this rung. The MP3 rungs need an
// external encoder; the minimal rung uses the built-in AAC encoder so it
// still works on stripped-down encoder builds.
func (r Rung) args(in, out string, tier sizemodel.Tier) []string {
	a := []string{"-i", in, "-vn"}
	switch r {
	case RungFull:
		a = append(a, "-ac", "1", "-ar", strconv.Itoa(tier.SampleRate), "-b:a", kbps(tier.Bitrate), "-c:a", "libmp3lame")
	case RungReduced:
		a = append(a, "-ac", "1", "-b:a", kbps(tier.Bitrate))
	default:
		a = append(a, "-ac", "1", "-c:a", "aac", "-b:a", kbps(tier.Bitrate))
	}
	return append(a, out)
}

func (r Rung) extension() string {
	if r == RungMinimal {
		return ".m4a"
	}
	return ".mp3"
}

func (r Rung) mimeType() string {
	if r == RungMinimal {
		return "audio/mp4"
	}
	return "audio/mpeg"
}

func kbps(bps int) string {
	return strconv.Itoa(bps/1000) + "k"
}

// decodeArgs asks the platform decoder for 16-bit PCM in a WAV container.
func decodeArgs(in, out string) []string {
	return []string{"-i", in, "-vn", "-acodec", "pcm_s16le", "-f", "wav", out}
}

func extensionFor(mimeType, fileName string) string {
	if ext := filepath.Ext(fileName); len(ext) > 1 {
		return strings.ToLower(ext)
	}
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".bin"
	}
}
