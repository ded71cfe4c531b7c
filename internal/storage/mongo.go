package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rrusk/audio-recogition-system/internal/fingerprint"
)

// DefaultMongoURI is used when no connection string is configured.
const DefaultMongoURI = "mongodb://localhost:27017/fingerprints"

const mongoOpTimeout = 10 * time.Second

type songDoc struct {
	ID       uint32  `bson:"_id"`
	Name     string  `bson:"name"`
	FileHash string  `bson:"filehash"`
	Title    string  `bson:"title,omitempty"`
	Artist   string  `bson:"artist,omitempty"`
	Album    string  `bson:"album,omitempty"`
	Genre    string  `bson:"genre,omitempty"`
	Track    int     `bson:"track,omitempty"`
	Duration float64 `bson:"duration,omitempty"`
}

type fingerprintDoc struct {
	SongFK uint32 `bson:"song_fk"`
	Hash   string `bson:"hash"`
	Offset int    `bson:"offset"`
}

// MongoStore keeps the corpus in a MongoDB database. Song IDs are plain
// numeric counters so the engine sees the same opaque uint32 regardless of
// backend.
type MongoStore struct {
	client       *mongo.Client
	songs        *mongo.Collection
	fingerprints *mongo.Collection
	counters     *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	if uri == "" {
		uri = DefaultMongoURI
	}
	connectCtx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(databaseNameFromURI(uri))
	s := &MongoStore{
		client:       client,
		songs:        db.Collection("songs"),
		fingerprints: db.Collection("fingerprints"),
		counters:     db.Collection("counters"),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		return nil, err
	}
	return s, nil
}

// databaseNameFromURI extracts the database path component of a mongodb
// connection string, defaulting to "fingerprints".
func databaseNameFromURI(uri string) string {
	rest := uri
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		name := rest[i+1:]
		if j := strings.IndexByte(name, '?'); j >= 0 {
			name = name[:j]
		}
		if name != "" {
			return name
		}
	}
	return "fingerprints"
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.fingerprints.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "song_fk", Value: 1}, {Key: "hash", Value: 1}, {Key: "offset", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "hash", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating fingerprint indexes: %w", err)
	}
	_, err = s.songs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "filehash", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("creating song index: %w", err)
	}
	return nil
}

// nextSongID atomically increments and returns the song counter.
func (s *MongoStore) nextSongID(ctx context.Context) (uint32, error) {
	var doc struct {
		Seq uint32 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "songs"},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("allocating song id: %w", err)
	}
	return doc.Seq, nil
}

func (s *MongoStore) RegisterSong(name, fileHash string, tags Tags) (uint32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

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

	id, err := s.nextSongID(ctx)
	if err != nil {
		return 0, err
	}
	doc := songDoc{
		ID:       id,
		Name:     name,
		FileHash: fileHash,
		Title:    tags.Title,
		Artist:   tags.Artist,
		Album:    tags.Album,
		Genre:    tags.Genre,
		Track:    tags.Track,
		Duration: tags.Duration,
	}
	if _, err := s.songs.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("inserting song: %w", err)
	}
	return id, nil
}

func (s *MongoStore) StoreFingerprints(songID uint32, hashes []fingerprint.Hash) error {
	if len(hashes) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	docs := make([]interface{}, 0, len(hashes))
	for _, h := range hashes {
		docs = append(docs, fingerprintDoc{SongFK: songID, Hash: h.Token, Offset: h.Offset})
	}
	// Unordered insert keeps going past duplicate-key rejections, which is
	// exactly the idempotence the natural-key index is there to provide.
	_, err := s.fingerprints.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !isDuplicateKeyErr(err) {
		return fmt.Errorf("inserting fingerprints: %w", err)
	}
	return nil
}

func isDuplicateKeyErr(err error) bool {
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, we := range bwe.WriteErrors {
			if we.Code != 11000 {
				return false
			}
		}
		return len(bwe.WriteErrors) > 0
	}
	return mongo.IsDuplicateKeyError(err)
}

func (s *MongoStore) LookupFingerprints(ctx context.Context, tokens []string) ([]fingerprint.Record, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	cursor, err := s.fingerprints.Find(ctx, bson.M{"hash": bson.M{"$in": tokens}})
	if err != nil {
		return nil, fmt.Errorf("querying fingerprints: %w", err)
	}
	defer cursor.Close(ctx)

	var records []fingerprint.Record
	for cursor.Next(ctx) {
		var doc fingerprintDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding fingerprint: %w", err)
		}
		records = append(records, fingerprint.Record{Token: doc.Hash, SongID: doc.SongFK, Offset: doc.Offset})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating fingerprints: %w", err)
	}
	return records, nil
}

func (s *MongoStore) GetSongByID(id uint32) (*Song, error) {
	return s.findSong(bson.M{"_id": id})
}

func (s *MongoStore) GetSongByFileHash(fileHash string) (*Song, error) {
	return s.findSong(bson.M{"filehash": fileHash})
}

func (s *MongoStore) GetSongByTags(tags Tags) (*Song, error) {
	filter := bson.M{}
	if tags.Title != "" {
		filter["title"] = tags.Title
	}
	if tags.Artist != "" {
		filter["artist"] = tags.Artist
	}
	if tags.Album != "" {
		filter["album"] = tags.Album
	}
	if tags.Genre != "" {
		filter["genre"] = tags.Genre
	}
	if tags.Track != 0 {
		filter["track"] = tags.Track
	}
	if len(filter) == 0 {
		return nil, nil
	}
	return s.findSong(filter)
}

func (s *MongoStore) findSong(filter bson.M) (*Song, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	var doc songDoc
	err := s.songs.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying song: %w", err)
	}
	return &Song{
		ID:       doc.ID,
		Name:     doc.Name,
		FileHash: doc.FileHash,
		Tags: Tags{
			Title:    doc.Title,
			Artist:   doc.Artist,
			Album:    doc.Album,
			Genre:    doc.Genre,
			Track:    doc.Track,
			Duration: doc.Duration,
		},
	}, nil
}

func (s *MongoStore) SongHashCount(songID uint32) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	n, err := s.fingerprints.CountDocuments(ctx, bson.M{"song_fk": songID})
	if err != nil {
		return 0, fmt.Errorf("counting fingerprints: %w", err)
	}
	return int(n), nil
}

func (s *MongoStore) ListSongs() ([]Song, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	cursor, err := s.songs.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	defer cursor.Close(ctx)

	var songs []Song
	for cursor.Next(ctx) {
		var doc songDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding song: %w", err)
		}
		songs = append(songs, Song{
			ID:       doc.ID,
			Name:     doc.Name,
			FileHash: doc.FileHash,
			Tags: Tags{
				Title:    doc.Title,
				Artist:   doc.Artist,
				Album:    doc.Album,
				Genre:    doc.Genre,
				Track:    doc.Track,
				Duration: doc.Duration,
			},
		})
	}
	return songs, cursor.Err()
}

func (s *MongoStore) Stats() (Stats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	songs, err := s.songs.CountDocuments(ctx, bson.M{})
	if err != nil {
		return Stats{}, fmt.Errorf("counting songs: %w", err)
	}
	fps, err := s.fingerprints.CountDocuments(ctx, bson.M{})
	if err != nil {
		return Stats{}, fmt.Errorf("counting fingerprints: %w", err)
	}
	return Stats{Songs: songs, Fingerprints: fps}, nil
}

func (s *MongoStore) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()

	for _, coll := range []*mongo.Collection{s.songs, s.fingerprints, s.counters} {
		if err := coll.Drop(ctx); err != nil {
			return fmt.Errorf("dropping %s: %w", coll.Name(), err)
		}
	}
	return s.ensureIndexes(ctx)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
