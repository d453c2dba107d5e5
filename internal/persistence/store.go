package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nix0283/CITARION-dev-sub004/internal/classifier"
)

// ErrNotFound is returned when no snapshot exists for a symbol.
var ErrNotFound = errors.New("snapshot not found")

// PlattParams captures the calibrator's coefficients for export.
type PlattParams struct {
	A      float64 `json:"a"`
	B      float64 `json:"b"`
	Fitted bool    `json:"fitted"`
}

// Snapshot carries everything needed to rebuild a symbol's learned state
// across process restarts. Every TrainingSample field round-trips exactly.
type Snapshot struct {
	Symbol    string                      `json:"symbol"`
	CreatedAt time.Time                   `json:"created_at"`
	Samples   []classifier.TrainingSample `json:"samples"`
	Platt     PlattParams                 `json:"platt"`
}

// Store persists and restores snapshots.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, symbol string) (*Snapshot, error)
}

// FileStore writes one JSON file per symbol under a directory. It is the
// default store for single-process deployments.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(symbol string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(symbol)
	return filepath.Join(s.dir, safe+".json")
}

// Save writes the snapshot atomically via a temp file rename.
func (s *FileStore) Save(_ context.Context, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot for %s: %w", snap.Symbol, err)
	}
	tmp := s.path(snap.Symbol) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot for %s: %w", snap.Symbol, err)
	}
	if err := os.Rename(tmp, s.path(snap.Symbol)); err != nil {
		return fmt.Errorf("commit snapshot for %s: %w", snap.Symbol, err)
	}
	log.Debug().Str("symbol", snap.Symbol).Int("samples", len(snap.Samples)).Msg("snapshot saved")
	return nil
}

// Load reads the snapshot for a symbol.
func (s *FileStore) Load(_ context.Context, symbol string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("symbol %s: %w", symbol, ErrNotFound)
		}
		return nil, fmt.Errorf("read snapshot for %s: %w", symbol, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot for %s: %w", symbol, err)
	}
	return &snap, nil
}
