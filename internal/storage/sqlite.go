package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rrusk/audio-recogition-system/internal/fingerprint"
)

// DefaultSQLitePath is used when no DSN is configured.
const DefaultSQLitePath = "fingerprints.sqlite3"

type songRow struct {
	ID        uint32 `gorm:"primaryKey;autoIncrement"`
	Name      string
	FileHash  string `gorm:"column:filehash;index:idx_songs_filehash"`
	Title     string `gorm:"index:idx_songs_meta,priority:1"`
	Artist    string `gorm:"index:idx_songs_meta,priority:2"`
	Album     string
	Genre     string
	Track     int
	Duration  float64
	CreatedAt time.Time
}

func (songRow) TableName() string { return "songs" }

type fingerprintRow struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	SongFK uint32 `gorm:"column:song_fk;uniqueIndex:idx_fp_natural,priority:1"`
	Hash   string `gorm:"index:idx_fp_hash;uniqueIndex:idx_fp_natural,priority:2"`
	Offset int    `gorm:"uniqueIndex:idx_fp_natural,priority:3"`
}

func (fingerprintRow) TableName() string { return "fingerprints" }

// SQLiteStore keeps the corpus in a single database file via the pure-Go
// sqlite driver.
type SQLiteStore struct {
	db *gorm.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.AutoMigrate(&songRow{}, &fingerprintRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RegisterSong(name, fileHash string, tags Tags) (uint32, error) {
	if fileHash != "" {
		if song, err := s.GetSongByFileHash(fileHash); err != nil {
			return 0, err
		} else if song != nil {
			return song.ID, nil
		}
	}
	if song, err := s.GetSongByTags(tags); err != nil {
		return 0, err
	} else if song != nil {
		return song.ID, nil
	}

	row := songRow{
		Name:     name,
		FileHash: fileHash,
		Title:    tags.Title,
		Artist:   tags.Artist,
		Album:    tags.Album,
		Genre:    tags.Genre,
		Track:    tags.Track,
		Duration: tags.Duration,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return 0, fmt.Errorf("creating song: %w", err)
	}
	return row.ID, nil
}

func (s *SQLiteStore) StoreFingerprints(songID uint32, hashes []fingerprint.Hash) error {
	if len(hashes) == 0 {
		return nil
	}
	rows := make([]fingerprintRow, 0, len(hashes))
	for _, h := range hashes {
		rows = append(rows, fingerprintRow{SongFK: songID, Hash: h.Token, Offset: h.Offset})
	}
	// ON CONFLICT DO NOTHING on the natural key keeps re-inserts harmless.
	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 500).Error
	if err != nil {
		return fmt.Errorf("batch insert fingerprints: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LookupFingerprints(ctx context.Context, tokens []string) ([]fingerprint.Record, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	var rows []fingerprintRow
	err := s.db.WithContext(ctx).Where("hash IN ?", tokens).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying fingerprints: %w", err)
	}
	records := make([]fingerprint.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, fingerprint.Record{Token: r.Hash, SongID: r.SongFK, Offset: r.Offset})
	}
	return records, nil
}

func (s *SQLiteStore) GetSongByID(id uint32) (*Song, error) {
	var row songRow
	err := s.db.First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying song %d: %w", id, err)
	}
	return rowToSong(row), nil
}

func (s *SQLiteStore) GetSongByFileHash(fileHash string) (*Song, error) {
	var row songRow
	err := s.db.Where("filehash = ?", fileHash).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying song by file hash: %w", err)
	}
	return rowToSong(row), nil
}

func (s *SQLiteStore) GetSongByTags(tags Tags) (*Song, error) {
	query := s.db
	criteria := 0
	if tags.Title != "" {
		query = query.Where("title = ?", tags.Title)
		criteria++
	}
	if tags.Artist != "" {
		query = query.Where("artist = ?", tags.Artist)
		criteria++
	}
	if tags.Album != "" {
		query = query.Where("album = ?", tags.Album)
		criteria++
	}
	if tags.Genre != "" {
		query = query.Where("genre = ?", tags.Genre)
		criteria++
	}
	if tags.Track != 0 {
		query = query.Where("track = ?", tags.Track)
		criteria++
	}
	if criteria == 0 {
		return nil, nil
	}

	var row songRow
	err := query.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying song by tags: %w", err)
	}
	return rowToSong(row), nil
}

func (s *SQLiteStore) SongHashCount(songID uint32) (int, error) {
	var count int64
	err := s.db.Model(&fingerprintRow{}).Where("song_fk = ?", songID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting fingerprints: %w", err)
	}
	return int(count), nil
}

func (s *SQLiteStore) ListSongs() ([]Song, error) {
	var rows []songRow
	if err := s.db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	songs := make([]Song, 0, len(rows))
	for _, r := range rows {
		songs = append(songs, *rowToSong(r))
	}
	return songs, nil
}

func (s *SQLiteStore) Stats() (Stats, error) {
	var st Stats
	if err := s.db.Model(&songRow{}).Count(&st.Songs).Error; err != nil {
		return Stats{}, fmt.Errorf("counting songs: %w", err)
	}
	if err := s.db.Model(&fingerprintRow{}).Count(&st.Fingerprints).Error; err != nil {
		return Stats{}, fmt.Errorf("counting fingerprints: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) Reset() error {
	if err := s.db.Migrator().DropTable(&songRow{}, &fingerprintRow{}); err != nil {
		return fmt.Errorf("dropping tables: %w", err)
	}
	if err := s.db.AutoMigrate(&songRow{}, &fingerprintRow{}); err != nil {
		return fmt.Errorf("recreating tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func rowToSong(r songRow) *Song {
	return &Song{
		ID:       r.ID,
		Name:     r.Name,
		FileHash: r.FileHash,
		Tags: Tags{
			Title:    r.Title,
			Artist:   r.Artist,
			Album:    r.Album,
			Genre:    r.Genre,
			Track:    r.Track,
			Duration: r.Duration,
		},
	}
}
