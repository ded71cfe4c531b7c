package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rrusk/audio-recogition-system/internal/fingerprint"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRegisterSong(t *testing.T) {
	store := setupTestStore(t)

	id, err := store.RegisterSong("song.mp3", "HASH1", Tags{Title: "Title", Artist: "Artist"})
	if err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected nonzero song id")
	}

	song, err := store.GetSongByID(id)
	if err != nil {
		t.Fatalf("GetSongByID failed: %v", err)
	}
	if song == nil {
		t.Fatal("registered song not found")
	}
	if song.Name != "song.mp3" || song.FileHash != "HASH1" || song.Title != "Title" {
		t.Errorf("unexpected song %+v", song)
	}
}

func TestRegisterSongReusesByFileHash(t *testing.T) {
	store := setupTestStore(t)

	first, err := store.RegisterSong("a.mp3", "SAMEHASH", Tags{})
	if err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}
	second, err := store.RegisterSong("b.mp3", "SAMEHASH", Tags{})
	if err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}
	if first != second {
		t.Errorf("same file hash produced two songs: %d and %d", first, second)
	}
}

func TestRegisterSongReusesByTags(t *testing.T) {
	store := setupTestStore(t)

	tags := Tags{Title: "Same Song", Artist: "Same Artist"}
	first, err := store.RegisterSong("a.mp3", "HASH_A", tags)
	if err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}
	second, err := store.RegisterSong("b.mp3", "HASH_B", tags)
	if err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}
	if first != second {
		t.Errorf("same tags produced two songs: %d and %d", first, second)
	}

	// Empty tags must never match anything.
	third, err := store.RegisterSong("c.mp3", "HASH_C", Tags{})
	if err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}
	if third == first {
		t.Error("empty tags matched an existing song")
	}
}

func TestStoreFingerprintsIdempotent(t *testing.T) {
	store := setupTestStore(t)

	id, err := store.RegisterSong("song.mp3", "HASH1", Tags{})
	if err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}

	hashes := []fingerprint.Hash{
		{Token: "aaaaaaaaaaaaaaaaaaaa", Offset: 3},
		{Token: "bbbbbbbbbbbbbbbbbbbb", Offset: 9},
	}
	for i := 0; i < 3; i++ {
		if err := store.StoreFingerprints(id, hashes); err != nil {
			t.Fatalf("StoreFingerprints (round %d) failed: %v", i, err)
		}
	}

	count, err := store.SongHashCount(id)
	if err != nil {
		t.Fatalf("SongHashCount failed: %v", err)
	}
	if count != len(hashes) {
		t.Errorf("got %d fingerprints after repeated insert, want %d", count, len(hashes))
	}
}

func TestLookupFingerprints(t *testing.T) {
	store := setupTestStore(t)

	id1, _ := store.RegisterSong("one.mp3", "H1", Tags{})
	id2, _ := store.RegisterSong("two.mp3", "H2", Tags{})

	if err := store.StoreFingerprints(id1, []fingerprint.Hash{
		{Token: "shared_token_0000000", Offset: 5},
		{Token: "only_in_one_00000000", Offset: 8},
	}); err != nil {
		t.Fatalf("StoreFingerprints failed: %v", err)
	}
	if err := store.StoreFingerprints(id2, []fingerprint.Hash{
		{Token: "shared_token_0000000", Offset: 41},
	}); err != nil {
		t.Fatalf("StoreFingerprints failed: %v", err)
	}

	records, err := store.LookupFingerprints(context.Background(),
		[]string{"shared_token_0000000", "missing_token_000000"})
	if err != nil {
		t.Fatalf("LookupFingerprints failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2: %v", len(records), records)
	}
	for _, r := range records {
		if r.Token != "shared_token_0000000" {
			t.Errorf("unexpected token %q", r.Token)
		}
		if r.SongID != id1 && r.SongID != id2 {
			t.Errorf("unexpected song id %d", r.SongID)
		}
	}

	// Empty token set short-circuits without touching the database.
	records, err = store.LookupFingerprints(context.Background(), nil)
	if err != nil || records != nil {
		t.Errorf("empty lookup: got (%v, %v)", records, err)
	}
}

func TestGetSongAbsent(t *testing.T) {
	store := setupTestStore(t)

	song, err := store.GetSongByID(12345)
	if err != nil {
		t.Fatalf("GetSongByID failed: %v", err)
	}
	if song != nil {
		t.Errorf("expected nil for absent song, got %+v", song)
	}

	song, err = store.GetSongByFileHash("NOHASH")
	if err != nil || song != nil {
		t.Errorf("absent file hash: got (%+v, %v)", song, err)
	}
}

func TestStatsAndReset(t *testing.T) {
	store := setupTestStore(t)

	id, _ := store.RegisterSong("song.mp3", "H1", Tags{})
	store.StoreFingerprints(id, []fingerprint.Hash{{Token: "tok_0000000000000000", Offset: 1}})

	st, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Songs != 1 || st.Fingerprints != 1 {
		t.Errorf("unexpected stats %+v", st)
	}

	if err := store.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	st, err = store.Stats()
	if err != nil {
		t.Fatalf("Stats after reset failed: %v", err)
	}
	if st.Songs != 0 || st.Fingerprints != 0 {
		t.Errorf("reset left data behind: %+v", st)
	}
}

func TestListSongs(t *testing.T) {
	store := setupTestStore(t)

	store.RegisterSong("first.mp3", "H1", Tags{Title: "First"})
	store.RegisterSong("second.mp3", "H2", Tags{Title: "Second"})

	songs, err := store.ListSongs()
	if err != nil {
		t.Fatalf("ListSongs failed: %v", err)
	}
	if len(songs) != 2 {
		t.Fatalf("got %d songs, want 2", len(songs))
	}
	if songs[0].Name != "first.mp3" || songs[1].Name != "second.mp3" {
		t.Errorf("unexpected order: %v", songs)
	}
}
