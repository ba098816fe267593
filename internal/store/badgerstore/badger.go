// Package badgerstore is an embedded-KV alternative Store backend, for
// deployments that want to avoid a relational engine. It indexes
// hash -> appended postings using dgraph-io/badger/v3 as the engine.
// Postings are appended (not overwritten) on collision, since every prior
// posting for a hash must remain queryable, and they are length-prefixed
// binary records rather than delimited text so a time_offset float64
// round-trips exactly. OneOfOne/xxhash dedupes (recording_id, hash,
// time_offset) triples within one Ingest call, so a triple repeated inside
// one batch is stored once; a triple already stored by an earlier Ingest
// call is appended again.
package badgerstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/OneOfOne/xxhash"
	"github.com/dgraph-io/badger/v3"

	"github.com/himanishpuri/audiofp/internal/fperrors"
	"github.com/himanishpuri/audiofp/internal/store"
)

const postingRecordSize = 4 + 8 // recordingID (uint32) + timeOffset (float64 bits)

// Store implements store.Store over an embedded Badger database.
type Store struct {
	db *badger.DB
}

// Open creates (or opens) a Badger database rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// --- key layout ---

func recKey(id uint32) []byte {
	k := make([]byte, 1+4)
	k[0] = 'r'
	binary.BigEndian.PutUint32(k[1:], id)
	return k
}

func postingKey(hash uint64) []byte {
	k := make([]byte, 1+8)
	k[0] = 'p'
	binary.BigEndian.PutUint64(k[1:], hash)
	return k
}

func hashListKey(recordingID uint32) []byte {
	k := make([]byte, 1+4)
	k[0] = 'h'
	binary.BigEndian.PutUint32(k[1:], recordingID)
	return k
}

func queryKey(n uint64) []byte {
	k := make([]byte, 1+8)
	k[0] = 'q'
	binary.BigEndian.PutUint64(k[1:], n)
	return k
}

var (
	counterRecordings = []byte("c:recordings")
	counterFPs        = []byte("c:fingerprints")
	counterQueries    = []byte("c:queries")
	counterSuccess    = []byte("c:successful_queries")
	counterProcSumMs  = []byte("c:processing_ms_sum")
	counterNextRecID  = []byte("c:next_recording_id")
	counterNextQueryN = []byte("c:next_query_n")
)

func getCounter(txn *badger.Txn, key []byte) uint64 {
	item, err := txn.Get(key)
	if err != nil {
		return 0
	}
	var v uint64
	_ = item.Value(func(b []byte) error {
		if len(b) == 8 {
			v = binary.BigEndian.Uint64(b)
		}
		return nil
	})
	return v
}

func setCounter(txn *badger.Txn, key []byte, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return txn.Set(key, buf)
}

func incrCounter(txn *badger.Txn, key []byte, delta int64) error {
	v := int64(getCounter(txn, key)) + delta
	if v < 0 {
		v = 0
	}
	return setCounter(txn, key, uint64(v))
}

func getFloatCounter(txn *badger.Txn, key []byte) float64 {
	return math.Float64frombits(getCounter(txn, key))
}

func addFloatCounter(txn *badger.Txn, key []byte, delta float64) error {
	v := getFloatCounter(txn, key) + delta
	return setCounter(txn, key, math.Float64bits(v))
}

// --- recording record encoding ---

func encodeRecording(rec store.Recording) []byte {
	album := ""
	hasAlbum := byte(0)
	if rec.Album != nil {
		album = *rec.Album
		hasAlbum = 1
	}
	var dur float64
	hasDur := byte(0)
	if rec.DurationSeconds != nil {
		dur = *rec.DurationSeconds
		hasDur = 1
	}

	buf := make([]byte, 0, 64+len(rec.Title)+len(rec.Artist)+len(album)+len(rec.SourceRef))
	buf = appendString(buf, rec.Title)
	buf = appendString(buf, rec.Artist)
	buf = append(buf, hasAlbum)
	buf = appendString(buf, album)
	buf = append(buf, hasDur)
	durBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(durBuf, math.Float64bits(dur))
	buf = append(buf, durBuf...)
	buf = appendString(buf, rec.SourceRef)
	return buf
}

func appendString(buf []byte, s string) []byte {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(s)))
	buf = append(buf, lenBuf...)
	return append(buf, s...)
}

func readString(buf []byte, offset int) (string, int) {
	n := int(binary.BigEndian.Uint32(buf[offset:]))
	offset += 4
	return string(buf[offset : offset+n]), offset + n
}

func decodeRecording(id uint32, buf []byte) store.Recording {
	offset := 0
	var title, artist, album, sourceRef string
	title, offset = readString(buf, offset)
	artist, offset = readString(buf, offset)
	hasAlbum := buf[offset]
	offset++
	album, offset = readString(buf, offset)
	hasDur := buf[offset]
	offset++
	dur := math.Float64frombits(binary.BigEndian.Uint64(buf[offset : offset+8]))
	offset += 8
	sourceRef, _ = readString(buf, offset)

	rec := store.Recording{ID: id, Title: title, Artist: artist, SourceRef: sourceRef}
	if hasAlbum == 1 {
		rec.Album = &album
	}
	if hasDur == 1 {
		rec.DurationSeconds = &dur
	}
	return rec
}

func (s *Store) RegisterRecording(ctx context.Context, rec store.Recording) (uint32, error) {
	var id uint32
	err := s.db.Update(func(txn *badger.Txn) error {
		id = uint32(getCounter(txn, counterNextRecID)) + 1
		if err := setCounter(txn, counterNextRecID, uint64(id)); err != nil {
			return err
		}
		rec.ID = id
		if err := txn.Set(recKey(id), encodeRecording(rec)); err != nil {
			return err
		}
		return incrCounter(txn, counterRecordings, 1)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", fperrors.ErrStoreUnavailable, err)
	}
	return id, nil
}

// Ingest dedupes (recording_id, hash, time_offset) triples within this
// call via xxhash, then appends postings in chunks of at most
// store.BatchInsertSize, read-modify-write per affected hash key.
func (s *Store) Ingest(ctx context.Context, recordingID uint32, fingerprints []store.Fingerprint) error {
	seen := make(map[uint64]struct{}, len(fingerprints))
	deduped := fingerprints[:0:0]
	for _, fp := range fingerprints {
		h := tripleHash(recordingID, fp.Hash, fp.TimeOffset)
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		deduped = append(deduped, fp)
	}

	for _, chunk := range store.ChunkFingerprints(deduped, store.BatchInsertSize) {
		if err := s.ingestChunk(recordingID, chunk); err != nil {
			return fmt.Errorf("%w: %v", fperrors.ErrStoreUnavailable, err)
		}
	}
	return nil
}

func tripleHash(recordingID uint32, hash uint64, timeOffset float64) uint64 {
	buf := make([]byte, 4+8+8)
	binary.BigEndian.PutUint32(buf[0:4], recordingID)
	binary.BigEndian.PutUint64(buf[4:12], hash)
	binary.BigEndian.PutUint64(buf[12:20], math.Float64bits(timeOffset))
	return xxhash.Checksum64(buf)
}

func (s *Store) ingestChunk(recordingID uint32, chunk []store.Fingerprint) error {
	byHash := make(map[uint64][]store.Fingerprint, len(chunk))
	for _, fp := range chunk {
		byHash[fp.Hash] = append(byHash[fp.Hash], fp)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for hash, fps := range byHash {
			key := postingKey(hash)
			existing, err := readBytes(txn, key)
			if err != nil {
				return err
			}
			for _, fp := range fps {
				rec := make([]byte, postingRecordSize)
				binary.BigEndian.PutUint32(rec[0:4], recordingID)
				binary.BigEndian.PutUint64(rec[4:12], math.Float64bits(fp.TimeOffset))
				existing = append(existing, rec...)
			}
			if err := txn.Set(key, existing); err != nil {
				return err
			}
		}

		hashList, err := readBytes(txn, hashListKey(recordingID))
		if err != nil {
			return err
		}
		for _, fp := range chunk {
			hb := make([]byte, 8)
			binary.BigEndian.PutUint64(hb, fp.Hash)
			hashList = append(hashList, hb...)
		}
		if err := txn.Set(hashListKey(recordingID), hashList); err != nil {
			return err
		}

		return incrCounter(txn, counterFPs, int64(len(chunk)))
	})
}

func readBytes(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	var out []byte
	err = item.Value(func(b []byte) error {
		out = append(out, b...)
		return nil
	})
	return out, err
}

// Lookup probes hashes in chunks of at most store.LookupChunkSize.
func (s *Store) Lookup(ctx context.Context, hashes []uint64) ([]store.Posting, error) {
	var out []store.Posting
	for _, chunk := range store.ChunkHashes(hashes, store.LookupChunkSize) {
		err := s.db.View(func(txn *badger.Txn) error {
			for _, h := range chunk {
				buf, err := readBytes(txn, postingKey(h))
				if err != nil {
					return err
				}
				for off := 0; off+postingRecordSize <= len(buf); off += postingRecordSize {
					recID := binary.BigEndian.Uint32(buf[off : off+4])
					t := math.Float64frombits(binary.BigEndian.Uint64(buf[off+4 : off+12]))
					out = append(out, store.Posting{RecordingID: recID, StoredTimeOffset: t, Hash: h})
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", fperrors.ErrStoreUnavailable, err)
		}
	}
	return out, nil
}

// DeleteRecording removes recordingID's entries from every posting list it
// touched, then its hash-list and metadata rows, atomically.
func (s *Store) DeleteRecording(ctx context.Context, recordingID uint32) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		hashListBuf, err := readBytes(txn, hashListKey(recordingID))
		if err != nil {
			return err
		}

		uniqueHashes := make(map[uint64]struct{})
		for off := 0; off+8 <= len(hashListBuf); off += 8 {
			uniqueHashes[binary.BigEndian.Uint64(hashListBuf[off:off+8])] = struct{}{}
		}

		var removed int64
		for hash := range uniqueHashes {
			key := postingKey(hash)
			buf, err := readBytes(txn, key)
			if err != nil {
				return err
			}
			kept := buf[:0:0]
			for off := 0; off+postingRecordSize <= len(buf); off += postingRecordSize {
				rec := buf[off : off+postingRecordSize]
				if binary.BigEndian.Uint32(rec[0:4]) == recordingID {
					removed++
					continue
				}
				kept = append(kept, rec...)
			}
			if len(kept) == 0 {
				if err := txn.Delete(key); err != nil {
					return err
				}
			} else if err := txn.Set(key, kept); err != nil {
				return err
			}
		}

		if err := txn.Delete(hashListKey(recordingID)); err != nil {
			return err
		}
		if err := txn.Delete(recKey(recordingID)); err != nil {
			return err
		}
		if err := incrCounter(txn, counterFPs, -removed); err != nil {
			return err
		}
		return incrCounter(txn, counterRecordings, -1)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", fperrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) GetRecording(ctx context.Context, recordingID uint32) (*store.Recording, error) {
	var rec store.Recording
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recKey(recordingID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return fperrors.ErrRecordingNotFound
			}
			return err
		}
		return item.Value(func(b []byte) error {
			rec = decodeRecording(recordingID, b)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListRecordings(ctx context.Context) ([]store.Recording, error) {
	var out []store.Recording
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{'r'}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := binary.BigEndian.Uint32(item.Key()[1:])
			err := item.Value(func(b []byte) error {
				out = append(out, decodeRecording(id, b))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) FingerprintCount(ctx context.Context, recordingID uint32) (int64, error) {
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		buf, err := readBytes(txn, hashListKey(recordingID))
		if err != nil {
			return err
		}
		count = int64(len(buf) / 8)
		return nil
	})
	return count, err
}

func (s *Store) RecordQuery(ctx context.Context, q store.QueryLog) error {
	return s.db.Update(func(txn *badger.Txn) error {
		n := getCounter(txn, counterNextQueryN) + 1
		if err := setCounter(txn, counterNextQueryN, n); err != nil {
			return err
		}

		buf := make([]byte, 0, 32)
		buf = appendFloat(buf, q.AudioDuration)
		if q.IdentifiedRecordingID != nil {
			buf = append(buf, 1)
			idBuf := make([]byte, 4)
			binary.BigEndian.PutUint32(idBuf, *q.IdentifiedRecordingID)
			buf = append(buf, idBuf...)
		} else {
			buf = append(buf, 0, 0, 0, 0, 0)
		}
		if q.Confidence != nil {
			buf = append(buf, 1)
			buf = appendFloat(buf, *q.Confidence)
		} else {
			buf = append(buf, 0, 0, 0, 0, 0, 0, 0, 0, 0)
		}
		buf = appendFloat(buf, q.ProcessingTimeMs)

		if err := txn.Set(queryKey(n), buf); err != nil {
			return err
		}
		if err := incrCounter(txn, counterQueries, 1); err != nil {
			return err
		}
		if q.IdentifiedRecordingID != nil {
			if err := incrCounter(txn, counterSuccess, 1); err != nil {
				return err
			}
		}
		return addFloatCounter(txn, counterProcSumMs, q.ProcessingTimeMs)
	})
}

func appendFloat(buf []byte, v float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return append(buf, b...)
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats
	err := s.db.View(func(txn *badger.Txn) error {
		stats.RecordingCount = int64(getCounter(txn, counterRecordings))
		stats.FingerprintCount = int64(getCounter(txn, counterFPs))
		stats.QueryCount = int64(getCounter(txn, counterQueries))
		stats.SuccessfulQueryCount = int64(getCounter(txn, counterSuccess))
		queries := getCounter(txn, counterQueries)
		if queries > 0 {
			stats.AverageProcessingTimeMs = getFloatCounter(txn, counterProcSumMs) / float64(queries)
		}
		return nil
	})
	return stats, err
}
