// Package audio turns audio inputs into raw PCM clips the fingerprinting
// engine can consume. Each clip keeps its channels separate so every
// channel can be fingerprinted on its own.
package audio

import "context"

// Metadata holds the tags read from an audio file. Fields are empty when
// the file carries no tag frame for them.
type Metadata struct {
	Title    string
	Artist   string
	Album    string
	Genre    string
	Track    int
	Duration float64
}

// Empty reports whether no tag field is set.
func (m Metadata) Empty() bool {
	return m.Title == "" && m.Artist == "" && m.Album == "" &&
		m.Genre == "" && m.Track == 0 && m.Duration == 0
}

// Clip is decoded PCM audio with per-channel 16-bit samples.
type Clip struct {
	Name       string
	SampleRate int
	Channels   [][]int16
	FileHash   string
	Meta       Metadata
}

// Source produces a clip, for example by decoding a file or recording
// from a microphone.
type Source interface {
	Capture(ctx context.Context) (*Clip, error)
}
