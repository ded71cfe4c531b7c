package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/rrusk/audio-recogition-system/internal/audio"
	"github.com/rrusk/audio-recogition-system/internal/service"
	"github.com/rrusk/audio-recogition-system/internal/storage"
	"github.com/rrusk/audio-recogition-system/pkg/logger"
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// openStore picks the backend from the environment: DB_DRIVER selects
// sqlite (default) or mongo, DB_PATH and MONGO_URI locate the database.
func openStore(ctx context.Context) (storage.Store, error) {
	driver := getEnvOrDefault("DB_DRIVER", "sqlite")
	var dsn string
	switch driver {
	case "mongo":
		dsn = getEnvOrDefault("MONGO_URI", storage.DefaultMongoURI)
	default:
		dsn = getEnvOrDefault("DB_PATH", storage.DefaultSQLitePath)
	}
	return storage.Open(ctx, driver, dsn)
}

func newService(ctx context.Context) (*service.Service, storage.Store, error) {
	store, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc, err := service.New(store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return svc, store, nil
}

func main() {
	// .env is optional; a missing file is not an error.
	godotenv.Load()
	log := logger.GetLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Debug("Executing command: %s", command)

	switch command {
	case "add":
		handleAdd()
	case "recognize":
		handleRecognize()
	case "list":
		handleList()
	case "stats":
		handleStats()
	case "reset":
		handleReset()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAdd() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	sigCheck := addCmd.Bool("signature-check", false, "Match each clip against the corpus and skip audible duplicates")
	addCmd.Parse(os.Args[2:])

	if addCmd.NArg() < 1 {
		fmt.Println("Usage: cli add [-signature-check] <file.wav | directory>")
		os.Exit(1)
	}
	target := addCmd.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	svc, store, err := newService(ctx)
	if err != nil {
		fail("Failed to open storage: %v", err)
	}
	defer store.Close()

	info, err := os.Stat(target)
	if err != nil {
		fail("Cannot read %s: %v", target, err)
	}

	paths := []string{target}
	if info.IsDir() {
		paths, err = audio.ListWavFiles(target)
		if err != nil {
			fail("%v", err)
		}
	}

	var bar *mpb.Bar
	var progress *mpb.Progress
	if len(paths) > 1 {
		progress = mpb.New(mpb.WithWidth(64))
		bar = progress.AddBar(int64(len(paths)),
			mpb.PrependDecorators(
				decor.Name("Adding: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
	}

	added, skipped, failed := 0, 0, 0
	for _, path := range paths {
		res, err := svc.Ingest(ctx, audio.NewFileSource(path), *sigCheck)
		switch {
		case err != nil:
			failed++
			color.Red("✗ %s: %v", path, err)
		case res.Skipped:
			skipped++
			color.Yellow("- %s: %s (song %d)", res.Name, res.SkipReason, res.SongID)
		default:
			added++
			color.Green("✓ %s: song %d, %s fingerprints", res.Name, res.SongID, humanize.Comma(int64(res.HashCount)))
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if progress != nil {
		progress.Wait()
	}

	fmt.Printf("\nDone: %d added, %d skipped, %d failed\n", added, skipped, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func handleRecognize() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: cli recognize <file.wav>")
		os.Exit(1)
	}
	path := os.Args[2]

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	svc, store, err := newService(ctx)
	if err != nil {
		fail("Failed to open storage: %v", err)
	}
	defer store.Close()

	rec, err := svc.Recognize(ctx, audio.NewFileSource(path))
	if err != nil {
		fail("Recognition failed: %v", err)
	}

	if !rec.Matched {
		color.Red("No match found for %s", path)
		return
	}

	name := fmt.Sprintf("song %d", rec.SongID)
	if rec.Song != nil {
		name = rec.Song.Name
	}
	color.Green("Matched: %s", name)
	if rec.Song != nil && rec.Song.Artist != "" {
		fmt.Printf("  Artist:     %s\n", rec.Song.Artist)
	}
	if rec.Song != nil && rec.Song.Album != "" {
		fmt.Printf("  Album:      %s\n", rec.Song.Album)
	}
	fmt.Printf("  Confidence: %s aligned hashes\n", humanize.Comma(int64(rec.Confidence)))
	fmt.Printf("  Offset:     %.2fs into the song\n", rec.OffsetSeconds)
}

func handleList() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		fail("Failed to open storage: %v", err)
	}
	defer store.Close()

	songs, err := store.ListSongs()
	if err != nil {
		fail("Failed to list songs: %v", err)
	}
	if len(songs) == 0 {
		fmt.Println("No songs in the database")
		return
	}

	for _, song := range songs {
		line := fmt.Sprintf("%4d  %s", song.ID, song.Name)
		if song.Artist != "" {
			line += " - " + song.Artist
		}
		fmt.Println(line)
	}
	fmt.Printf("\n%d song(s)\n", len(songs))
}

func handleStats() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		fail("Failed to open storage: %v", err)
	}
	defer store.Close()

	st, err := store.Stats()
	if err != nil {
		fail("Failed to read stats: %v", err)
	}
	fmt.Printf("Songs:        %s\n", humanize.Comma(st.Songs))
	fmt.Printf("Fingerprints: %s\n", humanize.Comma(st.Fingerprints))

	songs, err := store.ListSongs()
	if err != nil {
		fail("Failed to list songs: %v", err)
	}
	for _, song := range songs {
		count, err := store.SongHashCount(song.ID)
		if err != nil {
			fail("Failed to count fingerprints for song %d: %v", song.ID, err)
		}
		fmt.Printf("  %4d  %-40s %s\n", song.ID, song.Name, humanize.Comma(int64(count)))
	}
}

func handleReset() {
	resetCmd := flag.NewFlagSet("reset", flag.ExitOnError)
	confirmed := resetCmd.Bool("yes", false, "Skip the confirmation prompt")
	resetCmd.Parse(os.Args[2:])

	if !*confirmed {
		fmt.Print("This deletes every song and fingerprint. Type 'yes' to continue: ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "yes" {
			fmt.Println("Aborted")
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		fail("Failed to open storage: %v", err)
	}
	defer store.Close()

	if err := store.Reset(); err != nil {
		fail("Reset failed: %v", err)
	}
	color.Green("Database reset")
}

func fail(format string, args ...any) {
	color.Red(format, args...)
	logger.Error(format, args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Audio fingerprinting CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli add [-signature-check] <file.wav | directory>")
	fmt.Println("  cli recognize <file.wav>")
	fmt.Println("  cli list")
	fmt.Println("  cli stats")
	fmt.Println("  cli reset [-yes]")
	fmt.Println("\nEnvironment (also read from .env):")
	fmt.Println("  DB_DRIVER   sqlite (default) or mongo")
	fmt.Println("  DB_PATH     SQLite database path (default: " + storage.DefaultSQLitePath + ")")
	fmt.Println("  MONGO_URI   MongoDB connection string (default: " + storage.DefaultMongoURI + ")")
	fmt.Println("  LOG_LEVEL   DEBUG, INFO, WARN, ERROR or FATAL")
}
