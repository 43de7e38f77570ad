package audio

import (
	"encoding/base64"
	"math"
)

// SampleCount is the fixed length of every waveform this package
// produces or accepts.
const SampleCount = 60

// defaultAmplitude renders as a flat quiet line in clients that cannot
// be given real data.
const defaultAmplitude = 0.05

// DefaultWaveform returns the canonical substitute used when waveform
// data is absent or undecodable. Callers always receive a full-length
// sequence, never an empty one.
func DefaultWaveform() []float64 {
	w := make([]float64, SampleCount)
	for i := range w {
		w[i] = defaultAmplitude
	}
	return w
}

// DecodeWaveform turns the engine's base64 byte-encoded waveform into
// the canonical normalized form: SampleCount floats in [0,1]. One byte
// maps to one amplitude, scaled by 255; the sequence is padded or
// truncated to the fixed length. Invalid or empty input yields the
// default waveform.
func DecodeWaveform(encoded string) []float64 {
	if encoded == "" {
		return DefaultWaveform()
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) == 0 {
		return DefaultWaveform()
	}

	w := make([]float64, SampleCount)
	for i := range w {
		if i < len(raw) {
			w[i] = clamp01(float64(raw[i]) / 255.0)
		}
	}
	return w
}

// EncodeWaveform converts normalized amplitudes back to the engine's
// byte encoding. Values are clamped to [0,1] before scaling so mixed
// scales can never leak onto the wire.
func EncodeWaveform(waveform []float64) string {
	raw := make([]byte, len(waveform))
	for i, v := range waveform {
		raw[i] = byte(math.Round(clamp01(v) * 255.0))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// Normalize pads or truncates a waveform to the fixed sample count,
// clamping every value to [0,1]. Empty input yields the default.
func Normalize(waveform []float64) []float64 {
	if len(waveform) == 0 {
		return DefaultWaveform()
	}
	w := make([]float64, SampleCount)
	for i := range w {
		if i < len(waveform) {
			w[i] = clamp01(waveform[i])
		}
	}
	return w
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
