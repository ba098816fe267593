package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/audiofp/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "fp.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegisterAndGetRecording(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	album := "Greatest Hits"
	dur := 213.5
	id, err := s.RegisterRecording(ctx, store.Recording{
		Title: "Song A", Artist: "Artist A", Album: &album, DurationSeconds: &dur, SourceRef: "a.wav",
	})
	if err != nil {
		t.Fatalf("RegisterRecording: %v", err)
	}

	got, err := s.GetRecording(ctx, id)
	if err != nil {
		t.Fatalf("GetRecording: %v", err)
	}
	if got.Title != "Song A" || *got.Album != album {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestGetRecordingNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRecording(context.Background(), 999)
	if err == nil {
		t.Fatal("expected error for missing recording")
	}
}

func TestIngestAndLookupChunked(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, _ := s.RegisterRecording(ctx, store.Recording{Title: "T", Artist: "A", SourceRef: "x.wav"})

	var fps []store.Fingerprint
	for i := 0; i < 1500; i++ {
		fps = append(fps, store.Fingerprint{RecordingID: id, Hash: uint64(i % 50), TimeOffset: float64(i) * 0.1})
	}
	if err := s.Ingest(ctx, id, fps); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	count, err := s.FingerprintCount(ctx, id)
	if err != nil {
		t.Fatalf("FingerprintCount: %v", err)
	}
	if count != 1500 {
		t.Fatalf("expected 1500 fingerprints across batches, got %d", count)
	}

	postings, err := s.Lookup(ctx, []uint64{0, 1})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(postings) != 60 {
		t.Fatalf("expected 60 postings for hashes {0,1}, got %d", len(postings))
	}
}

func TestDeleteRecordingCascades(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, _ := s.RegisterRecording(ctx, store.Recording{Title: "T", Artist: "A", SourceRef: "x.wav"})
	_ = s.Ingest(ctx, id, []store.Fingerprint{{RecordingID: id, Hash: 7, TimeOffset: 1.0}})

	if err := s.DeleteRecording(ctx, id); err != nil {
		t.Fatalf("DeleteRecording: %v", err)
	}
	if _, err := s.GetRecording(ctx, id); err == nil {
		t.Fatal("expected recording to be gone")
	}
	postings, err := s.Lookup(ctx, []uint64{7})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(postings) != 0 {
		t.Fatalf("expected fingerprints to be cascaded away, got %d", len(postings))
	}
}

func TestStatsAndRecordQuery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, _ := s.RegisterRecording(ctx, store.Recording{Title: "T", Artist: "A", SourceRef: "x.wav"})
	_ = s.Ingest(ctx, id, []store.Fingerprint{{RecordingID: id, Hash: 1, TimeOffset: 0}})

	conf := 0.8
	_ = s.RecordQuery(ctx, store.QueryLog{AudioDuration: 10, IdentifiedRecordingID: &id, Confidence: &conf, ProcessingTimeMs: 200})
	_ = s.RecordQuery(ctx, store.QueryLog{AudioDuration: 5, ProcessingTimeMs: 100})

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.RecordingCount != 1 || stats.FingerprintCount != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.QueryCount != 2 || stats.SuccessfulQueryCount != 1 {
		t.Fatalf("unexpected query counts: %+v", stats)
	}
	if stats.AverageProcessingTimeMs != 150 {
		t.Fatalf("AverageProcessingTimeMs = %v, want 150", stats.AverageProcessingTimeMs)
	}
}

func TestListRecordings(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, _ = s.RegisterRecording(ctx, store.Recording{Title: "One", Artist: "A", SourceRef: "1.wav"})
	_, _ = s.RegisterRecording(ctx, store.Recording{Title: "Two", Artist: "B", SourceRef: "2.wav"})

	recs, err := s.ListRecordings(ctx)
	if err != nil {
		t.Fatalf("ListRecordings: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 recordings, got %d", len(recs))
	}
}
