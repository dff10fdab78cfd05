package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/mmcdole/shelf/internal/domain"
)

// Bucket names
var (
	bucketCollections = []byte("collections")
	bucketCategories  = []byte("categories")
	bucketRecords     = []byte("records")

	allBuckets = [][]byte{bucketCollections, bucketCategories, bucketRecords}
)

// SnapshotStore implements domain.Store: an in-memory snapshot cache,
// optionally written through to BoltDB.
type SnapshotStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

var _ domain.Store = (*SnapshotStore)(nil)

// NewSnapshotStore opens the store. An empty baseCacheDir keeps everything in
// memory; otherwise snapshots are persisted per server URL.
func NewSnapshotStore(baseCacheDir, serverURL string) (*SnapshotStore, error) {
	if baseCacheDir == "" {
		// Memory-only mode (no persistence)
		return &SnapshotStore{cache: make(map[string][]byte)}, nil
	}

	dir := baseCacheDir
	if serverURL != "" {
		dir = filepath.Join(baseCacheDir, hashServerURL(serverURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "shelf.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SnapshotStore{db: db, cache: make(map[string][]byte)}, nil
}

func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

// Persistent reports whether snapshots survive Close
func (s *SnapshotStore) Persistent() bool {
	return s.db != nil
}

func (s *SnapshotStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *SnapshotStore) get(bucket []byte, key string, dest interface{}) bool {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *SnapshotStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *SnapshotStore) delete(bucket []byte, key string) {
	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	delete(s.cache, cacheKey)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucket); b != nil {
			b.Delete([]byte(key))
		}
		return nil
	})
}

// === Collections (key: area name) ===

func (s *SnapshotStore) GetBooks(area domain.Area) ([]domain.Book, bool) {
	var books []domain.Book
	ok := s.get(bucketCollections, string(area), &books)
	return books, ok
}

func (s *SnapshotStore) SaveBooks(area domain.Area, books []domain.Book) error {
	if books == nil {
		books = []domain.Book{}
	}
	return s.set(bucketCollections, string(area), books)
}

func (s *SnapshotStore) InvalidateArea(area domain.Area) {
	s.delete(bucketCollections, string(area))
}

// === Categories ===

func (s *SnapshotStore) GetCategories() ([]domain.Category, bool) {
	var cats []domain.Category
	ok := s.get(bucketCategories, "list", &cats)
	return cats, ok
}

func (s *SnapshotStore) SaveCategories(categories []domain.Category) error {
	return s.set(bucketCategories, "list", categories)
}

// === Records (key: book id) ===

func (s *SnapshotStore) GetBook(id string) (domain.Book, bool) {
	var book domain.Book
	ok := s.get(bucketRecords, id, &book)
	return book, ok
}

func (s *SnapshotStore) SaveBook(book domain.Book) error {
	if book.ID == "" {
		return fmt.Errorf("cannot cache book without id")
	}
	return s.set(bucketRecords, book.ID, book)
}

func (s *SnapshotStore) InvalidateBook(id string) {
	s.delete(bucketRecords, id)
}

// InvalidateAll wipes memory and every bucket
func (s *SnapshotStore) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			b := tx.Bucket(bucket)
			if b == nil {
				continue
			}
			var keys [][]byte
			b.ForEach(func(k, _ []byte) error {
				keys = append(keys, append([]byte(nil), k...))
				return nil
			})
			for _, k := range keys {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
