package storage

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"

	"github.com/xoelrdgz/logtally/internal/ports"
)

var RunsBucket = []byte("runs")

// BoltHistory keeps one JSON record per finished run. Keys sort by time, so
// a reverse cursor walk lists the newest runs first.
type BoltHistory struct {
	db   *bolt.DB
	path string
}

func DefaultHistoryPath() string {
	return "./data/history.db"
}

func OpenBoltHistory(path string) (*BoltHistory, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(RunsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltHistory{db: db, path: path}, nil
}

// Record appends run. An empty run.ID is replaced with a generated one.
func (h *BoltHistory) Record(run *ports.RunRecord) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return h.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(RunsBucket)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(run.ID), data)
	})
}

// OnRunComplete implements ports.RunObserver. Failures are logged only; a
// history write never changes the outcome of a run.
func (h *BoltHistory) OnRunComplete(ctx context.Context, run ports.RunRecord) {
	if err := h.Record(&run); err != nil {
		log.Warn().Err(err).Str("path", h.path).Msg("Failed to record run history")
		return
	}
	log.Debug().Str("id", run.ID).Msg("Run recorded in history")
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (h *BoltHistory) List(limit int) ([]ports.RunRecord, error) {
	var runs []ports.RunRecord
	err := h.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(RunsBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run ports.RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				continue // skip corrupt entries
			}
			runs = append(runs, run)
		}
		return nil
	})
	return runs, err
}

func (h *BoltHistory) Count() int {
	var n int
	h.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(RunsBucket); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n
}

func (h *BoltHistory) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

var runCounter atomic.Uint64

// NewRunID returns a key that sorts by creation time.
func NewRunID() string {
	var randBytes [4]byte
	if _, err := crypto_rand.Read(randBytes[:]); err != nil {
		return fmt.Sprintf("%s-%06d-00000000",
			time.Now().UTC().Format("20060102T150405.000000000"),
			runCounter.Add(1))
	}
	return fmt.Sprintf("%s-%06d-%08x",
		time.Now().UTC().Format("20060102T150405.000000000"),
		runCounter.Add(1),
		binary.BigEndian.Uint32(randBytes[:]))
}
