// Package service orchestrates ingestion and recognition on top of the
// fingerprint engine, the audio boundary and a storage backend.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rrusk/audio-recogition-system/internal/audio"
	"github.com/rrusk/audio-recogition-system/internal/fingerprint"
	"github.com/rrusk/audio-recogition-system/internal/storage"
	"github.com/rrusk/audio-recogition-system/pkg/logger"
)

type Service struct {
	store storage.Store
	log   *logger.Logger
	cfg   fingerprint.Config
}

type Option func(*Service)

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithEngineConfig(cfg fingerprint.Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

func New(store storage.Store, opts ...Option) (*Service, error) {
	s := &Service{
		store: store,
		log:   logger.GetLogger(),
		cfg:   fingerprint.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// IngestResult reports what happened to one clip. Skipped is set when the
// clip was already in the corpus and nothing was written.
type IngestResult struct {
	SongID     uint32
	Name       string
	HashCount  int
	Skipped    bool
	SkipReason string
}

// Ingest fingerprints a clip and stores it. A clip whose file hash or tags
// already match a registered song is skipped. With signatureCheck the clip's
// hashes are first matched against the corpus and dropped as a duplicate
// when the best alignment reaches the duplicate threshold, which catches
// re-encodes of already known audio.
func (s *Service) Ingest(ctx context.Context, src audio.Source, signatureCheck bool) (*IngestResult, error) {
	clip, err := src.Capture(ctx)
	if err != nil {
		return nil, err
	}

	if clip.FileHash != "" {
		song, err := s.store.GetSongByFileHash(clip.FileHash)
		if err != nil {
			return nil, err
		}
		if song != nil {
			s.log.Info("Skipping %s: file hash already registered as song %d", clip.Name, song.ID)
			return &IngestResult{SongID: song.ID, Name: clip.Name, Skipped: true, SkipReason: "file hash already registered"}, nil
		}
	}

	tags := tagsFromMeta(clip.Meta)
	if !tags.Empty() {
		song, err := s.store.GetSongByTags(tags)
		if err != nil {
			return nil, err
		}
		if song != nil {
			s.log.Info("Skipping %s: tags already registered as song %d", clip.Name, song.ID)
			return &IngestResult{SongID: song.ID, Name: clip.Name, Skipped: true, SkipReason: "tags already registered"}, nil
		}
	}

	hashes, err := s.fingerprintClip(clip)
	if err != nil {
		return nil, err
	}
	hashes = fingerprint.UniqueHashes(hashes)
	s.log.Info("Fingerprinted %s: %d channels, %d unique hashes", clip.Name, len(clip.Channels), len(hashes))

	if signatureCheck && len(hashes) > 0 {
		verdict, err := s.vote(ctx, hashes)
		if err != nil {
			return nil, err
		}
		if verdict != nil && verdict.Confidence >= s.cfg.DuplicateThreshold {
			s.log.Warn("Skipping %s: matches song %d with confidence %d", clip.Name, verdict.SongID, verdict.Confidence)
			return &IngestResult{SongID: verdict.SongID, Name: clip.Name, Skipped: true, SkipReason: "signature matches an existing song"}, nil
		}
	}

	fileHash := clip.FileHash
	if fileHash == "" {
		// Sources that don't come from a file still get a unique identity.
		fileHash = "mem-" + uuid.NewString()
	}
	songID, err := s.store.RegisterSong(clip.Name, fileHash, tags)
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", clip.Name, err)
	}
	if err := s.store.StoreFingerprints(songID, hashes); err != nil {
		return nil, fmt.Errorf("storing fingerprints for %s: %w", clip.Name, err)
	}

	s.log.Info("Added song %d (%s) with %d fingerprints", songID, clip.Name, len(hashes))
	return &IngestResult{SongID: songID, Name: clip.Name, HashCount: len(hashes)}, nil
}

// Recognition is the outcome of matching a query clip against the corpus.
// Matched is false when the query produced no corpus hits at all.
type Recognition struct {
	Matched       bool
	SongID        uint32
	Song          *storage.Song
	Confidence    int
	OffsetDelta   int
	OffsetSeconds float64
}

// Recognize matches a clip against the corpus and returns the best-aligned
// song. Every channel votes into the same histogram, the way a stereo query
// should reinforce rather than split its own evidence.
func (s *Service) Recognize(ctx context.Context, src audio.Source) (*Recognition, error) {
	clip, err := src.Capture(ctx)
	if err != nil {
		return nil, err
	}

	cfg := s.engineConfig(clip)
	matcher := fingerprint.NewMatcher(s.store, cfg)
	voter := fingerprint.NewVoter()

	for i, channel := range clip.Channels {
		hashes, err := fingerprint.Fingerprint(channel, cfg)
		if err != nil {
			return nil, fmt.Errorf("fingerprinting channel %d: %w", i, err)
		}
		if err := matcher.Stream(ctx, hashes, voter.Add); err != nil {
			return nil, fmt.Errorf("matching channel %d: %w", i, err)
		}
	}

	verdict, ok := voter.Best()
	if !ok {
		s.log.Info("No match for %s (%d observations)", clip.Name, voter.Observations())
		return &Recognition{}, nil
	}

	song, err := s.store.GetSongByID(verdict.SongID)
	if err != nil {
		return nil, err
	}

	rec := &Recognition{
		Matched:       true,
		SongID:        verdict.SongID,
		Song:          song,
		Confidence:    verdict.Confidence,
		OffsetDelta:   verdict.OffsetDelta,
		OffsetSeconds: cfg.OffsetSeconds(verdict.OffsetDelta),
	}
	s.log.Info("Matched %s to song %d (confidence %d, offset %.2fs)",
		clip.Name, rec.SongID, rec.Confidence, rec.OffsetSeconds)
	return rec, nil
}

// fingerprintClip runs the engine over every channel concurrently and
// concatenates the results.
func (s *Service) fingerprintClip(clip *audio.Clip) ([]fingerprint.Hash, error) {
	cfg := s.engineConfig(clip)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		hashes   []fingerprint.Hash
		firstErr error
	)
	for i, channel := range clip.Channels {
		wg.Add(1)
		go func(i int, samples []int16) {
			defer wg.Done()
			chHashes, err := fingerprint.Fingerprint(samples, cfg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("fingerprinting channel %d: %w", i, err)
				}
				return
			}
			hashes = append(hashes, chHashes...)
		}(i, channel)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return hashes, nil
}

// vote matches a hash set against the corpus and returns the best verdict,
// or nil when nothing in the corpus lines up.
func (s *Service) vote(ctx context.Context, hashes []fingerprint.Hash) (*fingerprint.Verdict, error) {
	matcher := fingerprint.NewMatcher(s.store, s.cfg)
	voter := fingerprint.NewVoter()
	if err := matcher.Stream(ctx, hashes, voter.Add); err != nil {
		return nil, err
	}
	verdict, ok := voter.Best()
	if !ok {
		return nil, nil
	}
	return &verdict, nil
}

// engineConfig adopts the clip's sample rate so clips recorded at other
// rates still land in the right frequency bins.
func (s *Service) engineConfig(clip *audio.Clip) fingerprint.Config {
	cfg := s.cfg
	if clip.SampleRate > 0 {
		cfg.SampleRate = clip.SampleRate
	}
	return cfg
}

func tagsFromMeta(m audio.Metadata) storage.Tags {
	return storage.Tags{
		Title:    m.Title,
		Artist:   m.Artist,
		Album:    m.Album,
		Genre:    m.Genre,
		Track:    m.Track,
		Duration: m.Duration,
	}
}
