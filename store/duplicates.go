package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/minio/highwayhash"
	log "github.com/sirupsen/logrus"

	"github.com/deedworks/deedflow/deed"
)

// hashKey is a fixed random key. Hashes are identities persisted across
// runs, so the key can never change.
var hashKey, _ = hex.DecodeString("332f1f62fc2935b2f47fbd8b1380fdb8f5a16bab0b26b19f89b87681c405f7f5")

// DuplicateDetector answers whether a document's content was already
// seen, via a 256-bit HighwayHash of the file keyed by hashKey. Lookups
// hit an LRU first and fall back to the content_hashes table.
type DuplicateDetector struct {
	store *Store
	cache *lru.Cache[string, string]
}

// NewDuplicateDetector builds a detector over the store with an LRU of
// cacheSize recent hashes.
func NewDuplicateDetector(store *Store, cacheSize int) (*DuplicateDetector, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	var cache, err = lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("building hash cache: %w", err)
	}
	return &DuplicateDetector{store: store, cache: cache}, nil
}

// HashFile computes the content hash of the file at path.
func HashFile(path string) (string, error) {
	var f, err = os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()
	return HashStream(f)
}

// HashStream computes the content hash of r.
func HashStream(r io.Reader) (string, error) {
	var h, err = highwayhash.New(hashKey)
	if err != nil {
		return "", fmt.Errorf("initializing hash: %w", err)
	}
	if _, err = io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Check returns the document ID that first carried this hash, or empty
// when the content is new.
func (d *DuplicateDetector) Check(ctx context.Context, hash string) (string, error) {
	if docID, ok := d.cache.Get(hash); ok {
		return docID, nil
	}

	var docID string
	var err = d.store.db.QueryRowContext(ctx,
		d.store.sql(`SELECT document_id FROM content_hashes WHERE hash = ?`), hash).
		Scan(&docID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up content hash: %w", err)
	}

	d.cache.Add(hash, docID)
	return docID, nil
}

// HashedFile is one input file with its computed content hash.
type HashedFile struct {
	Path string
	Hash string
}

// CheckBatch partitions candidate files into unique inputs and
// duplicates. Duplicates map the path to the document that first
// carried the content, covering both prior runs and repeats within the
// candidate set itself. Unreadable files are skipped with a warning.
func (d *DuplicateDetector) CheckBatch(ctx context.Context, paths []string) (unique []HashedFile, duplicates map[string]string, err error) {
	duplicates = map[string]string{}
	var inBatch = map[string]string{}

	for _, path := range paths {
		var hash string
		if hash, err = HashFile(path); err != nil {
			log.WithFields(log.Fields{"path": path, "error": err}).
				Warn("skipping unreadable file")
			err = nil
			continue
		}

		if original, ok := inBatch[hash]; ok {
			duplicates[path] = original
			continue
		}
		var original string
		if original, err = d.Check(ctx, hash); err != nil {
			return nil, nil, err
		} else if original != "" {
			duplicates[path] = original
			continue
		}

		inBatch[hash] = deed.DocumentIDFromFilename(path)
		unique = append(unique, HashedFile{Path: path, Hash: hash})
	}
	return unique, duplicates, nil
}

// Record stores the hash of a newly seen document. Racing inserts of
// the same hash keep the first document ID.
func (d *DuplicateDetector) Record(ctx context.Context, hash, docID string) error {
	if _, err := d.store.db.ExecContext(ctx, d.store.sql(`
		INSERT INTO content_hashes (hash, document_id, first_seen)
		VALUES (?, ?, ?)
		ON CONFLICT (hash) DO NOTHING`),
		hash, docID, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("recording content hash: %w", err)
	}
	d.cache.Add(hash, docID)

	log.WithFields(log.Fields{"doc": docID, "hash": hash[:12]}).Debug("content hash recorded")
	return nil
}
