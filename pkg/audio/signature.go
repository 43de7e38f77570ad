package audio

import (
	"bytes"
	"io"
	"os"
)

// Format identifies an audio container by its file signature.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatOGG     Format = "ogg"
	FormatUnknown Format = ""
)

var (
	riffMagic = []byte("RIFF")
	oggMagic  = []byte("OggS")
)

// DetectFormat classifies a payload by its leading bytes.
func DetectFormat(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, riffMagic):
		return FormatWAV
	case bytes.HasPrefix(header, oggMagic):
		return FormatOGG
	default:
		return FormatUnknown
	}
}

// DetectFileFormat classifies a file on disk by its signature.
func DetectFileFormat(path string) (Format, error) {
	f, err := os.Open(path) // #nosec G304 - callers validate paths
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(f, header); err != nil {
		return FormatUnknown, err
	}
	return DetectFormat(header), nil
}
