package playback

import (
	"encoding/binary"
	"fmt"
)

// decoded holds the PCM samples recovered from a synthesis result.
type decoded struct {
	samples    []int16
	sampleRate int
	channels   int
}

// rawSampleRate is assumed for headerless PCM16 input.
const rawSampleRate = 24000

// decodeAudio recovers PCM16 samples from synthesized audio bytes. A RIFF/WAVE
// header is parsed for format metadata; anything else is treated as raw 24kHz
// mono PCM16. Malformed input fails with ErrDecode.
func decodeAudio(data []byte) (*decoded, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrDecode)
	}

	if len(data) >= 12 && string(data[0:4]) == "RIFF" {
		return decodeWAV(data)
	}

	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: odd PCM16 byte count %d", ErrDecode, len(data))
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return &decoded{samples: samples, sampleRate: rawSampleRate, channels: 1}, nil
}

// decodeWAV parses a RIFF/WAVE container holding PCM16 audio.
func decodeWAV(data []byte) (*decoded, error) {
	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: RIFF without WAVE form", ErrDecode)
	}

	var (
		sampleRate int
		channels   int
		bitDepth   int
		haveFmt    bool
		pcm        []byte
	)

	// Walk the chunk list.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, fmt.Errorf("%w: truncated %q chunk", ErrDecode, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrDecode)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body:])
			if audioFormat != 1 {
				return nil, fmt.Errorf("%w: unsupported WAV format %d", ErrDecode, audioFormat)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bitDepth = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true

		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt || pcm == nil {
		return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrDecode)
	}
	if bitDepth != 16 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrDecode, bitDepth)
	}
	if channels < 1 || channels > 2 || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: implausible format %dch @%dHz", ErrDecode, channels, sampleRate)
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("%w: odd data chunk length", ErrDecode)
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return &decoded{samples: samples, sampleRate: sampleRate, channels: channels}, nil
}

// encodeWAV builds a minimal RIFF/WAVE container around PCM16 samples.
// Used by tests and tooling to produce valid synthesis fixtures.
func encodeWAV(samples []int16, sampleRate, channels int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}
	return buf
}
