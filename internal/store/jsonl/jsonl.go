// Package jsonl persists ticks as JSON lines and serves reads from memory.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go-ticker/internal/common"
	"go-ticker/internal/store/memory"
	"go-ticker/pkg/models"
)

// Store appends every tick to a file and indexes the series in memory. The
// index only sees ticks that reached the file.
type Store struct {
	mu    sync.Mutex
	file  *os.File
	w     io.Writer
	size  int64
	index *memory.Store
}

// Open creates or reopens path and replays the ticks already in it.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonl store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonl store: %w", err)
	}
	index := memory.New()
	if err := replay(path, index); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonl store: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("jsonl store: %w", err)
	}
	return &Store{
		file:  file,
		w:     file,
		size:  info.Size(),
		index: index,
	}, nil
}

func replay(path string, index *memory.Store) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("jsonl store: %w", err)
	}
	defer file.Close()

	var ticks []models.Tick
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var t models.Tick
		if err := json.Unmarshal(scanner.Bytes(), &t); err != nil {
			return fmt.Errorf("jsonl store: line %d: %w", line, err)
		}
		ticks = append(ticks, t)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("jsonl store: %w", err)
	}
	if err := index.AppendBatch(context.Background(), ticks); err != nil {
		return fmt.Errorf("jsonl store: replay: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return common.ErrStoreUnavailable
	}
	return s.index.Ping(ctx)
}

func (s *Store) Append(ctx context.Context, tick models.Tick) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLocked(ctx, []models.Tick{tick}); err != nil {
		return 0, err
	}
	return s.index.Append(context.WithoutCancel(ctx), tick)
}

// AppendBatch is all-or-nothing on disk and in memory.
func (s *Store) AppendBatch(ctx context.Context, ticks []models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLocked(ctx, ticks); err != nil {
		return err
	}
	return s.index.AppendBatch(context.WithoutCancel(ctx), ticks)
}

func (s *Store) Last(ctx context.Context) (models.Tick, error) {
	return s.index.Last(ctx)
}

func (s *Store) Range(ctx context.Context, from, to int64, limit int) ([]models.Tick, error) {
	return s.index.Range(ctx, from, to, limit)
}

// Close closes the file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	_ = s.index.Close()
	return err
}

// writeLocked validates ticks against the index and writes them in a single
// call. A failed write truncates the file back to its previous size.
func (s *Store) writeLocked(ctx context.Context, ticks []models.Tick) error {
	if s.file == nil {
		return common.ErrStoreUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.index.Check(ticks); err != nil {
		return err
	}
	if len(ticks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range ticks {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("jsonl store: encode: %w", err)
		}
	}
	n, err := s.w.Write(buf.Bytes())
	if err == nil && n < buf.Len() {
		err = io.ErrShortWrite
	}
	if err != nil {
		if terr := s.file.Truncate(s.size); terr != nil {
			return fmt.Errorf("jsonl store: write: %w (truncate: %v)", err, terr)
		}
		return fmt.Errorf("jsonl store: write: %w", err)
	}
	s.size += int64(n)
	return nil
}
