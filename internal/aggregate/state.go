package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// StateStore keeps the aggregation watermark: the last event timestamp whose windows are
// all flushed. Each window size has its own watermark.
type StateStore interface {
	Load(ctx context.Context, windowSeconds uint64) (uint64, bool, error)
	Save(ctx context.Context, windowSeconds, ts uint64) error
}

// FileStateStore keeps watermarks for every window size in one JSON file.
type FileStateStore struct {
	Path string
}

type watermark struct {
	Timestamp uint64 `json:"last_processed_ts"`
	UpdatedAt string `json:"updated_at"`
}

func (s *FileStateStore) read() (map[string]watermark, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]watermark{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	marks := map[string]watermark{}
	if err := json.Unmarshal(data, &marks); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", s.Path, err)
	}
	return marks, nil
}

func (s *FileStateStore) Load(_ context.Context, windowSeconds uint64) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	marks, err := s.read()
	if err != nil {
		return 0, false, err
	}
	mark, ok := marks[strconv.FormatUint(windowSeconds, 10)]
	return mark.Timestamp, ok, nil
}

func (s *FileStateStore) Save(_ context.Context, windowSeconds, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	marks, err := s.read()
	if err != nil {
		return err
	}
	marks[strconv.FormatUint(windowSeconds, 10)] = watermark{
		Timestamp: ts,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.MarshalIndent(marks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	return os.Rename(tmp, s.Path)
}
