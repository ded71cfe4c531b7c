package audio

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
)

// FileSource decodes a 16-bit PCM WAV file from disk.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (fs *FileSource) Capture(ctx context.Context) (*Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(fs.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", fs.Path, err)
	}
	defer f.Close()

	hash, err := hashFile(f)
	if err != nil {
		return nil, fmt.Errorf("hashing %s: %w", fs.Path, err)
	}

	meta := readTags(f)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding %s: %w", fs.Path, err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", fs.Path)
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("%s: unsupported bit depth %d, want 16", fs.Path, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", fs.Path, err)
	}

	nch := buf.Format.NumChannels
	if nch < 1 {
		return nil, fmt.Errorf("%s: no audio channels", fs.Path)
	}
	channels := deinterleave(buf.Data, nch)

	if meta.Duration == 0 {
		if d, err := dec.Duration(); err == nil {
			meta.Duration = d.Seconds()
		}
	}

	name := filepath.Base(fs.Path)
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(name, filepath.Ext(name))
	}

	return &Clip{
		Name:       name,
		SampleRate: buf.Format.SampleRate,
		Channels:   channels,
		FileHash:   hash,
		Meta:       meta,
	}, nil
}

// deinterleave splits interleaved frames into one sample slice per channel.
func deinterleave(data []int, nch int) [][]int16 {
	frames := len(data) / nch
	channels := make([][]int16, nch)
	for c := range channels {
		channels[c] = make([]int16, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < nch; c++ {
			channels[c][i] = int16(data[i*nch+c])
		}
	}
	return channels
}

// hashFile computes the SHA-1 of the whole file, uppercased. The hash
// identifies a file across renames so the same audio is never fingerprinted
// twice.
func hashFile(f *os.File) (string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return strings.ToUpper(fmt.Sprintf("%x", h.Sum(nil))), nil
}

// readTags pulls whatever ID3/RIFF metadata the file carries. A file with
// no tags is fine; the caller falls back to the filename.
func readTags(f *os.File) Metadata {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Metadata{}
	}
	m, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{}
	}
	track, _ := m.Track()
	return Metadata{
		Title:  m.Title(),
		Artist: m.Artist(),
		Album:  m.Album(),
		Genre:  m.Genre(),
		Track:  track,
	}
}

// ListWavFiles returns the WAV files directly under dir, sorted by name.
func ListWavFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, errors.New("no WAV files found in " + dir)
	}
	return paths, nil
}
