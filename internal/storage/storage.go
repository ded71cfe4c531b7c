// Package storage persists songs and their landmark fingerprints. Two
// backends implement the same interface: SQLite for single-file local
// libraries and MongoDB for shared ones. The fingerprinting engine itself
// only ever sees the batched-lookup slice of this interface.
package storage

import (
	"context"
	"fmt"

	"github.com/rrusk/audio-recogition-system/internal/fingerprint"
)

// Tags is the descriptive metadata attached to a song at ingestion time.
// The engine never interprets any of it.
type Tags struct {
	Title    string
	Artist   string
	Album    string
	Genre    string
	Track    int
	Duration float64
}

// Empty reports whether no tag field is set.
func (t Tags) Empty() bool {
	return t == Tags{}
}

// Song is one registered audio asset.
type Song struct {
	ID       uint32
	Name     string
	FileHash string
	Tags
}

// Stats summarizes the corpus.
type Stats struct {
	Songs        int64
	Fingerprints int64
}

// Store is the persistence contract both backends satisfy.
//
// Lookup methods return (nil, nil) when nothing matches; absence is not an
// error anywhere in this interface.
type Store interface {
	// RegisterSong returns the ID of an existing song with the same file
	// hash or the same tags, or inserts a new row and returns its ID.
	RegisterSong(name, fileHash string, tags Tags) (uint32, error)

	// StoreFingerprints persists hashes for a song. Duplicate
	// (song, hash, offset) triples are silent no-ops, so re-ingesting a
	// song or overlapping fan-out windows cannot corrupt the corpus.
	StoreFingerprints(songID uint32, hashes []fingerprint.Hash) error

	// LookupFingerprints is the exact-match batched lookup the matcher
	// drives. Rows come back in no particular order.
	LookupFingerprints(ctx context.Context, tokens []string) ([]fingerprint.Record, error)

	GetSongByID(id uint32) (*Song, error)
	GetSongByFileHash(fileHash string) (*Song, error)
	GetSongByTags(tags Tags) (*Song, error)

	// SongHashCount returns the number of stored fingerprints for a song.
	SongHashCount(songID uint32) (int, error)

	ListSongs() ([]Song, error)
	Stats() (Stats, error)

	// Reset drops the whole corpus, songs and fingerprints alike.
	Reset() error

	Close() error
}

// Open constructs a Store for the named driver. dsn is a file path for
// sqlite and a connection URI for mongo.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteStore(dsn)
	case "mongo", "mongodb":
		return NewMongoStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}
