// fpctl is the local CLI for the fingerprinting core: ingest a file,
// identify a clip, inspect stats, or delete a recording. Global flags
// precede a command word (os.Args[1]); each command then parses its own
// flag.NewFlagSet from the remaining args. Ingest progress is rendered with
// github.com/vbauerster/mpb/v8.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/himanishpuri/audiofp/internal/fperrors"
	"github.com/himanishpuri/audiofp/internal/ingest"
	"github.com/himanishpuri/audiofp/internal/recognizer"
	"github.com/himanishpuri/audiofp/pkg/config"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var (
	dbPath      string
	tempDir     string
	backend     string
	picker      string
	concurrency int
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("AUDIOFP_DB_PATH", "audiofp.sqlite3"), "Path to the fingerprint store")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("AUDIOFP_TEMP_DIR", "/tmp"), "Temporary directory for format conversion")
	flag.StringVar(&backend, "backend", getEnvOrDefault("AUDIOFP_BACKEND", "sqlite"), "Store backend: sqlite or badger")
	flag.StringVar(&picker, "picker", "strict", "Peak picker: strict or adaptive (debug)")
	flag.IntVar(&concurrency, "concurrency", ingest.DefaultConcurrency, "Bounded ingest worker pool size")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func newRecognizer() (*recognizer.Recognizer, error) {
	var be config.Backend
	switch backend {
	case "badger":
		be = config.BackendBadger
	default:
		be = config.BackendSQLite
	}

	return config.New(
		config.WithBackend(be),
		config.WithDBPath(dbPath),
		config.WithTempDir(tempDir),
		config.WithConcurrency(concurrency),
		config.WithAdaptivePicker(picker == "adaptive"),
	)
}

func main() {
	printBanner()

	// Global flags (--db, --temp, --backend, --picker, --concurrency) must
	// precede the command word: `fpctl --backend badger ingest file.wav ...`.
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command, rest := args[0], args[1:]

	switch command {
	case "ingest":
		handleIngest(rest)
	case "identify":
		handleIdentify(rest)
	case "stats":
		handleStats()
	case "list":
		handleList()
	case "delete":
		handleDelete(rest)
	default:
		fmt.Printf("unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	fmt.Println("audiofp - constellation-map audio fingerprinting CLI")
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  fpctl ingest <audio_file> --title <title> --artist <artist> [--album <album>]")
	fmt.Println("  fpctl identify <audio_file>")
	fmt.Println("  fpctl stats")
	fmt.Println("  fpctl list")
	fmt.Println("  fpctl delete <recording_id>")
	fmt.Println("\nGlobal options:")
	fmt.Println("  --db <path>          store path (env AUDIOFP_DB_PATH)")
	fmt.Println("  --temp <dir>         temp dir for conversion (env AUDIOFP_TEMP_DIR)")
	fmt.Println("  --backend <name>     sqlite or badger (env AUDIOFP_BACKEND)")
	fmt.Println("  --picker <name>      strict or adaptive (debug)")
	fmt.Println("  --concurrency <n>    ingest worker pool size")
}

func handleIngest(rest []string) {
	if len(rest) < 1 {
		fmt.Println("usage: fpctl ingest <audio_file> --title <title> --artist <artist>")
		os.Exit(1)
	}
	audioPath := rest[0]

	ingestCmd := flag.NewFlagSet("ingest", flag.ExitOnError)
	title := ingestCmd.String("title", "", "recording title (required)")
	artist := ingestCmd.String("artist", "", "recording artist (required)")
	album := ingestCmd.String("album", "", "recording album (optional)")
	ingestCmd.Parse(rest[1:])

	if *title == "" || *artist == "" {
		fmt.Println("error: --title and --artist are required")
		os.Exit(1)
	}

	r, err := newRecognizer()
	if err != nil {
		fmt.Printf("failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	p := mpb.New(mpb.WithWidth(40))
	bar := p.AddBar(1,
		mpb.PrependDecorators(decor.Name("ingesting "+audioPath)),
		mpb.AppendDecorators(decor.Percentage()),
	)

	var meta ingest.Metadata
	meta.Title = *title
	meta.Artist = *artist
	if *album != "" {
		meta.Album = album
	}
	meta.SourceRef = audioPath

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	id, err := r.Add(ctx, meta, audioPath)
	bar.SetCurrent(1)
	p.Wait()

	if err != nil {
		fmt.Printf("failed to ingest: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ingested recording %d: %s by %s\n", id, *title, *artist)
}

func handleIdentify(rest []string) {
	if len(rest) < 1 {
		fmt.Println("usage: fpctl identify <audio_file>")
		os.Exit(1)
	}
	audioPath := rest[0]

	r, err := newRecognizer()
	if err != nil {
		fmt.Printf("failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := r.Identify(ctx, audioPath)
	if err != nil {
		if errors.Is(err, fperrors.ErrNoMatch) {
			fmt.Println("no match found")
			return
		}
		fmt.Printf("identify failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("matched recording %d\n", result.RecordingID)
	fmt.Printf("  confidence:       %.3f\n", result.Confidence)
	fmt.Printf("  aligned matches:  %d\n", result.AlignedMatches)
	fmt.Printf("  query fingerprints: %d\n", result.QueryFingerprintCount)
	fmt.Printf("  processing time:  %.1fms\n", result.ProcessingTimeMs)
}

func handleStats() {
	r, err := newRecognizer()
	if err != nil {
		fmt.Printf("failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	stats, err := r.GetStats(context.Background())
	if err != nil {
		fmt.Printf("failed to get stats: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("recordings:          %d\n", stats.RecordingCount)
	fmt.Printf("fingerprints:        %d\n", stats.FingerprintCount)
	fmt.Printf("queries:             %d\n", stats.QueryCount)
	fmt.Printf("successful queries:  %d\n", stats.SuccessfulQueryCount)
	fmt.Printf("avg processing time: %.1fms\n", stats.AverageProcessingTimeMs)
}

func handleList() {
	r, err := newRecognizer()
	if err != nil {
		fmt.Printf("failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	recordings, err := r.ListRecordings(context.Background())
	if err != nil {
		fmt.Printf("failed to list recordings: %v\n", err)
		os.Exit(1)
	}

	if len(recordings) == 0 {
		fmt.Println("no recordings in store")
		return
	}

	for _, rec := range recordings {
		fmt.Printf("%d. %q by %s\n", rec.ID, rec.Title, rec.Artist)
	}
}

func handleDelete(rest []string) {
	if len(rest) < 1 {
		fmt.Println("usage: fpctl delete <recording_id>")
		os.Exit(1)
	}

	id, err := strconv.ParseUint(rest[0], 10, 32)
	if err != nil {
		fmt.Printf("invalid recording id: %v\n", err)
		os.Exit(1)
	}

	r, err := newRecognizer()
	if err != nil {
		fmt.Printf("failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	if err := r.Delete(context.Background(), uint32(id)); err != nil {
		fmt.Printf("failed to delete recording %d: %v\n", id, err)
		os.Exit(1)
	}

	fmt.Printf("deleted recording %d\n", id)
}
