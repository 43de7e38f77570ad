package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// Transcoder converts audio between container formats and derives
// waveform samples from raw audio. The gateway core depends only on this
// interface; tests substitute fakes.
type Transcoder interface {
	// Transcode converts srcPath into dstPath. codec may be empty for the
	// target format's default.
	Transcode(ctx context.Context, srcPath string, srcFormat Format, dstPath string, dstFormat Format, codec string) error
	// ExtractWaveform derives up to samples normalized amplitudes in
	// [0,1] from the audio at path. An error means no usable data; the
	// caller substitutes the default waveform.
	ExtractWaveform(path string, samples int) ([]float64, error)
}

// FFmpegTranscoder shells out to ffmpeg for format conversion and parses
// WAV PCM directly for waveform extraction.
type FFmpegTranscoder struct {
	binary string
	logger *logrus.Logger
}

// NewFFmpegTranscoder creates a transcoder using the given ffmpeg binary
// ("ffmpeg" resolves via PATH when empty).
func NewFFmpegTranscoder(binary string, logger *logrus.Logger) *FFmpegTranscoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegTranscoder{binary: binary, logger: logger}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, srcPath string, srcFormat Format, dstPath string, dstFormat Format, codec string) error {
	args := []string{"-y", "-i", srcPath, "-ac", "1", "-ar", "16000"}
	if codec != "" {
		args = append(args, "-c:a", codec)
	}
	if dstFormat == FormatOGG {
		args = append(args, "-b:a", "32k")
	}
	args = append(args, dstPath)

	cmd := exec.CommandContext(ctx, t.binary, args...) // #nosec G204 - fixed binary, validated paths
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s -> %s failed: %w: %s", srcFormat, dstFormat, err, string(output))
	}

	t.logger.WithFields(logrus.Fields{
		"src": srcPath,
		"dst": dstPath,
	}).Debug("Transcoded audio file")
	return nil
}

// ExtractWaveform parses 16-bit PCM WAV data and emits per-bucket peak
// amplitudes normalized against the loudest sample.
func (t *FFmpegTranscoder) ExtractWaveform(path string, samples int) ([]float64, error) {
	if samples <= 0 {
		samples = SampleCount
	}

	pcm, err := readWAVSamples(path)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("no audio samples in %s", path)
	}

	var peak float64 = 1
	for _, s := range pcm {
		if a := abs64(float64(s)); a > peak {
			peak = a
		}
	}

	step := len(pcm) / samples
	if step < 1 {
		step = 1
	}

	waveform := make([]float64, 0, samples)
	for i := 0; i < len(pcm) && len(waveform) < samples; i += step {
		end := i + step
		if end > len(pcm) {
			end = len(pcm)
		}
		var bucketPeak float64
		for _, s := range pcm[i:end] {
			if a := abs64(float64(s)); a > bucketPeak {
				bucketPeak = a
			}
		}
		waveform = append(waveform, bucketPeak/peak)
	}
	for len(waveform) < samples {
		waveform = append(waveform, 0)
	}
	return waveform, nil
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// readWAVSamples pulls the 16-bit little-endian PCM samples out of a
// RIFF/WAVE file, averaging multi-channel frames down to mono.
func readWAVSamples(path string) ([]int16, error) {
	data, err := os.ReadFile(path) // #nosec G304 - callers validate paths
	if err != nil {
		return nil, err
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file: %s", path)
	}

	var (
		channels      = 1
		bitsPerSample = 16
	)

	// Walk the chunk list for fmt and data.
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 {
				channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
				bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			}
		case "data":
			if bitsPerSample != 16 {
				return nil, fmt.Errorf("unsupported sample width %d bits", bitsPerSample)
			}
			if channels < 1 {
				channels = 1
			}
			frameSize := 2 * channels
			frames := chunkSize / frameSize
			samples := make([]int16, 0, frames)
			for f := 0; f < frames; f++ {
				var sum int
				for c := 0; c < channels; c++ {
					at := body + f*frameSize + c*2
					sum += int(int16(binary.LittleEndian.Uint16(data[at : at+2])))
				}
				samples = append(samples, int16(sum/channels))
			}
			return samples, nil
		}

		// Chunks are word aligned.
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	return nil, fmt.Errorf("no data chunk in %s", path)
}
