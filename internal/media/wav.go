package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

// ErrNotWAV is returned for data without a usable RIFF/WAVE header.
var ErrNotWAV = errors.New("not a wav file")

// WAVInfo is the format of a PCM WAV file plus its playing time.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	DataBytes  int
	Duration   float64
}

// ReadWAVInfo decodes the header of r and measures the data chunk.
func ReadWAVInfo(r io.ReadSeeker) (WAVInfo, error) {
	d := wav.NewDecoder(r)
	if err := d.FwdToPCM(); err != nil {
		return WAVInfo{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if err := d.Err(); err != nil {
		return WAVInfo{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if d.SampleRate == 0 || d.NumChans == 0 || d.BitDepth == 0 {
		return WAVInfo{}, fmt.Errorf("%w: empty fmt chunk", ErrNotWAV)
	}

	info := WAVInfo{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		DataBytes:  d.PCMSize,
	}
	frameBytes := info.Channels * ((info.BitDepth + 7) / 8)
	frames := info.DataBytes / frameBytes
	info.Duration = float64(frames) / float64(info.SampleRate)
	return info, nil
}

// WAVDuration returns the playing time of a WAV buffer in seconds.
func WAVDuration(data []byte) (float64, error) {
	info, err := ReadWAVInfo(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// WAVFileDuration returns the playing time of the WAV file at path.
func WAVFileDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := ReadWAVInfo(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return info.Duration, nil
}

// FileSizeMB reports a file's size in megabytes.
func FileSizeMB(path string) (float64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return float64(st.Size()) / (1024 * 1024), nil
}
