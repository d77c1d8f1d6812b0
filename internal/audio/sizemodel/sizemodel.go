// Package sizemodel holds the pure arithmetic behind compression decisions:
// duration estimates from byte size, encoder tier selection for a size
// target, and the policy thresholds.
package sizemodel

import "math"

const (
	MiB = 1 << 20
	MB  = 1_000_000

	// bytesPerMinute is the observed average for compressed speech.
	bytesPerMinute = MiB
)

// Tier is one bitrate/sample-rate pair of the encoder ladder.
type Tier struct {
	Bitrate    int // bits per second
	SampleRate int // Hz
}

// Tiers is ordered from highest to lowest quality. The last entry is the
// speech-intelligible floor at telephone sample rate.
var Tiers = []Tier{
	{Bitrate: 64_000, SampleRate: 44_100},
	{Bitrate: 48_000, SampleRate: 32_000},
	{Bitrate: 32_000, SampleRate: 22_050},
	{Bitrate: 24_000, SampleRate: 16_000},
	{Bitrate: 16_000, SampleRate: 8_000},
}

// Floor is the lowest tier.
func Floor() Tier { return Tiers[len(Tiers)-1] }

// EstimateDurationSeconds guesses duration from byte size at about 1 MiB
// per minute.
func EstimateDurationSeconds(byteSize int64) float64 {
	if byteSize <= 0 {
		return 0
	}
	return float64(byteSize) / bytesPerMinute * 60
}

// ChooseEncoding picks the highest tier whose bitrate fits the target for a
// capture of byteSize, using the duration estimate.
func ChooseEncoding(byteSize, targetBytes int64) Tier {
	return ChooseEncodingForDuration(EstimateDurationSeconds(byteSize), targetBytes)
}

// ChooseEncodingForDuration is ChooseEncoding for a known duration.
func ChooseEncodingForDuration(seconds float64, targetBytes int64) Tier {
	if seconds <= 0 {
		return Tiers[0]
	}
	candidate := float64(targetBytes) * 8 / seconds
	for _, t := range Tiers {
		if float64(t.Bitrate) <= candidate {
			return t
		}
	}
	return Floor()
}

// ProjectedBytes is the encoded size of seconds of audio at tier t.
func ProjectedBytes(t Tier, seconds float64) int64 {
	return int64(math.Ceil(float64(t.Bitrate) * seconds / 8))
}
