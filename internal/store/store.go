package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defaultHistory = 20

// Report is the outcome of one rebuild, kept for diagnostics.
// The membership index itself is never persisted.
type Report struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	State      string            `json:"state"`
	Version    uint64            `json:"version"`
	Playlists  int               `json:"playlists"`
	Items      int               `json:"items"`
	Missing    map[string]string `json:"missing,omitempty"` // playlist id -> failure
	Error      string            `json:"error,omitempty"`
}

// Duration returns how long the rebuild took
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ReportStore keeps the most recent rebuild reports in BoltDB, one bucket per server.
type ReportStore struct {
	db      *bolt.DB
	bucket  []byte
	history int

	mu     sync.RWMutex
	memory []Report // Memory-only mode, oldest first
}

// NewReportStore opens the store at path. An empty path keeps reports in memory only.
func NewReportStore(path, serverURL string, history int) (*ReportStore, error) {
	if history <= 0 {
		history = defaultHistory
	}
	s := &ReportStore{
		bucket:  []byte("reports:" + hashServerURL(serverURL)),
		history: history,
	}
	if path == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	return s, nil
}

func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *ReportStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save appends r and drops reports beyond the history limit
func (s *ReportStore) Save(r Report) error {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.memory = append(s.memory, r)
		if over := len(s.memory) - s.history; over > 0 {
			s.memory = append([]Report(nil), s.memory[over:]...)
		}
		return nil
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(itob(seq), data); err != nil {
			return err
		}

		// Trim oldest first; keys sort by sequence
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for i := 0; i < len(keys)-s.history; i++ {
			if err := b.Delete(keys[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns up to n reports, newest first. n <= 0 returns all of them.
func (s *ReportStore) Recent(n int) ([]Report, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		var out []Report
		for i := len(s.memory) - 1; i >= 0 && (n <= 0 || len(out) < n); i-- {
			out = append(out, s.memory[i])
		}
		return out, nil
	}

	var out []Report
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.Last(); k != nil && (n <= 0 || len(out) < n); k, v = c.Prev() {
			var r Report
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to decode report %x: %w", k, err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Latest returns the most recent report
func (s *ReportStore) Latest() (Report, bool) {
	reports, err := s.Recent(1)
	if err != nil || len(reports) == 0 {
		return Report{}, false
	}
	return reports[0], true
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
