package transcode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// SpeechSampleRate is the fixed rate decoded audio is resampled to.
const SpeechSampleRate = 16_000

var errNotWAV = errors.New("not a PCM16 wav stream")

// pcm is decoded 16-bit audio with interleaved channels.
type pcm struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

func (p pcm) Seconds() float64 {
	if p.SampleRate == 0 || p.Channels == 0 {
		return 0
	}
	return float64(len(p.Samples)/p.Channels) / float64(p.SampleRate)
}

// parseWAV reads a RIFF/WAVE blob holding 16-bit PCM.
func parseWAV(data []byte) (pcm, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return pcm{}, errNotWAV
	}

	var out pcm
	var haveFmt bool
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		// decoders streaming to a pipe leave the size unset
		if end > len(data) || (id == "data" && size == 0xFFFFFFFF) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return pcm{}, fmt.Errorf("%w: short fmt chunk", errNotWAV)
			}
			format := binary.LittleEndian.Uint16(data[body:])
			out.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			out.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits := binary.LittleEndian.Uint16(data[body+14:])
			// 0xFFFE is WAVE_FORMAT_EXTENSIBLE
			if (format != 1 && format != 0xFFFE) || bits != 16 || out.Channels == 0 {
				return pcm{}, fmt.Errorf("%w: format=%d bits=%d channels=%d", errNotWAV, format, bits, out.Channels)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return pcm{}, fmt.Errorf("%w: data before fmt", errNotWAV)
			}
			n := (end - body) / 2
			out.Samples = make([]int16, n)
			for i := 0; i < n; i++ {
				out.Samples[i] = int16(binary.LittleEndian.Uint16(data[body+2*i:]))
			}
			return out, nil
		}

		pos = end
		if size%2 == 1 {
			pos++
		}
	}
	return pcm{}, fmt.Errorf("%w: no data chunk", errNotWAV)
}

// downmix averages interleaved channels into mono.
func downmix(p pcm) pcm {
	if p.Channels <= 1 {
		return p
	}
	frames := len(p.Samples) / p.Channels
	mono := make([]int16, frames)
	for f := 0; f < frames; f++ {
		var sum int
		for c := 0; c < p.Channels; c++ {
			sum += int(p.Samples[f*p.Channels+c])
		}
		mono[f] = int16(sum / p.Channels)
	}
	return pcm{SampleRate: p.SampleRate, Channels: 1, Samples: mono}
}

// resample converts mono audio to rate by linear interpolation.
func resample(p pcm, rate int) pcm {
	if p.SampleRate == rate || len(p.Samples) == 0 {
		return pcm{SampleRate: rate, Channels: 1, Samples: p.Samples}
	}
	ratio := float64(p.SampleRate) / float64(rate)
	n := int(float64(len(p.Samples)) / ratio)
	out := make([]int16, n)
	last := len(p.Samples) - 1
	for i := range out {
		src := float64(i) * ratio
		j := int(src)
		if j >= last {
			out[i] = p.Samples[last]
			continue
		}
		frac := src - float64(j)
		out[i] = int16(math.Round(float64(p.Samples[j])*(1-frac) + float64(p.Samples[j+1])*frac))
	}
	return pcm{SampleRate: rate, Channels: 1, Samples: out}
}

// encodeWAV writes p as a canonical 44-byte-header PCM16 WAV file.
func encodeWAV(p pcm) []byte {
	const bytesPerSample = 2
	dataLen := len(p.Samples) * bytesPerSample
	blockAlign := p.Channels * bytesPerSample

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(p.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(p.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(p.SampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	binary.Write(&buf, binary.LittleEndian, p.Samples)

	return buf.Bytes()
}
