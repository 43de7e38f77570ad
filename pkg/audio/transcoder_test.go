package audio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStereoWAV builds a two-channel 16-bit PCM WAV payload from
// interleaved L/R samples.
func writeStereoWAV(t *testing.T, samples []int16) []byte {
	t.Helper()

	dataSize := len(samples) * 2
	buf := make([]byte, 0, 44+dataSize)
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataSize))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1)     // PCM
	buf = binary.LittleEndian.AppendUint16(buf, 2)     // stereo
	buf = binary.LittleEndian.AppendUint32(buf, 16000) // sample rate
	buf = binary.LittleEndian.AppendUint32(buf, 64000) // byte rate
	buf = binary.LittleEndian.AppendUint16(buf, 4)     // block align
	buf = binary.LittleEndian.AppendUint16(buf, 16)    // bits per sample
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataSize))
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s))
	}
	return buf
}

func TestExtractWaveform_StereoAveragedToMono(t *testing.T) {
	// Opposite-sign L/R frames cancel to near silence after down-mix.
	samples := make([]int16, 0, 400)
	for i := 0; i < 200; i++ {
		samples = append(samples, 8000, -8000)
	}
	path := filepath.Join(t.TempDir(), "stereo.wav")
	require.NoError(t, os.WriteFile(path, writeStereoWAV(t, samples), 0600))

	transcoder := NewFFmpegTranscoder("", logrus.New())
	w, err := transcoder.ExtractWaveform(path, 4)
	require.NoError(t, err)
	for i, v := range w {
		assert.True(t, math.Abs(v) < 0.01, "bucket %d should cancel out, got %f", i, v)
	}
}

func TestExtractWaveform_EmptyDataChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	require.NoError(t, os.WriteFile(path, writeTestWAV(t, nil), 0600))

	transcoder := NewFFmpegTranscoder("", logrus.New())
	_, err := transcoder.ExtractWaveform(path, SampleCount)
	assert.Error(t, err)
}

func TestNewFFmpegTranscoder_DefaultBinary(t *testing.T) {
	transcoder := NewFFmpegTranscoder("", logrus.New())
	assert.Equal(t, "ffmpeg", transcoder.binary)
}
