package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/pion/opus"
)

const (
	SampleRate       = 48000
	FrameSamples     = 240 // 5 ms capture chunks
	PlaybackBufferMs = 60
	opusFrameMs      = 20
)

var (
	ErrEmptyPayload = errors.New("audio: empty payload")
	ErrOddPayload   = errors.New("audio: payload is not a whole number of samples")
)

// Decoder turns one network payload into mono float32 samples at SampleRate.
type Decoder interface {
	Decode(payload []byte) ([]float32, error)
}

// PCMDecoder reads raw little-endian float32 samples.
type PCMDecoder struct{}

func (PCMDecoder) Decode(payload []byte) ([]float32, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if len(payload)%4 != 0 {
		return nil, ErrOddPayload
	}
	return DecodeSamples(payload), nil
}

// EncodeSamples is the inverse of DecodeSamples.
func EncodeSamples(samples []float32) []byte {
	out := make([]byte, 0, len(samples)*4)
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(s))
	}
	return out
}

// DecodeSamples reads little-endian float32 samples, ignoring a trailing
// partial sample.
func DecodeSamples(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// OpusDecoder decodes Opus frames and resamples them to SampleRate.
// Not safe for concurrent use.
type OpusDecoder struct {
	dec opus.Decoder
	out []byte
}

func NewOpusDecoder() *OpusDecoder {
	return &OpusDecoder{
		dec: opus.NewDecoder(),
		out: make([]byte, SampleRate/1000*opusFrameMs*2*2), // 20 ms, stereo, s16
	}
}

func (d *OpusDecoder) Decode(payload []byte) ([]float32, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	bw, stereo, err := d.dec.Decode(payload, d.out)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	rate := bw.SampleRate()
	n := rate / 1000 * opusFrameMs
	step := 1
	if stereo {
		step = 2
	}
	n = min(n, len(d.out)/(2*step))

	pcm := make([]float32, n)
	for i := range pcm {
		s := int16(binary.LittleEndian.Uint16(d.out[i*2*step:]))
		pcm[i] = float32(s) / 32768
	}
	return Resample(pcm, rate, SampleRate), nil
}

// Resample converts between sample rates by linear interpolation.
func Resample(in []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(in) == 0 {
		return in
	}
	n := len(in) * to / from
	out := make([]float32, n)
	ratio := float64(from) / float64(to)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out[i] = in[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = in[j] + (in[j+1]-in[j])*frac
	}
	return out
}
