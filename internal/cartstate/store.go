package cartstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

type storedCart struct {
	Version int    `json:"version"`
	Items   []Item `json:"items"`
}

const storeVersion = 1

// FileStore keeps the guest cart as a JSON document on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart file: %w", err)
	}
	return decodeStored(raw)
}

// Save writes through a temp file so a crash never leaves a half-written cart.
func (s *FileStore) Save(ctx context.Context, items []Item) error {
	raw, err := json.Marshal(storedCart{Version: storeVersion, Items: items})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write cart file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cart file: %w", err)
	}
	return nil
}

// MemoryStore holds the encoded cart in memory. Raw can be set directly to
// simulate a damaged store.
type MemoryStore struct {
	mu  sync.Mutex
	Raw []byte
}

func (s *MemoryStore) Load(ctx context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Raw) == 0 {
		return nil, nil
	}
	return decodeStored(s.Raw)
}

func (s *MemoryStore) Save(ctx context.Context, items []Item) error {
	raw, err := json.Marshal(storedCart{Version: storeVersion, Items: items})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	s.mu.Lock()
	s.Raw = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.Raw = nil
	s.mu.Unlock()
	return nil
}

func decodeStored(raw []byte) ([]Item, error) {
	var stored storedCart
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	items := stored.Items[:0]
	for _, item := range stored.Items {
		if item.Quantity <= 0 || item.Product.ID == uuid.Nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
