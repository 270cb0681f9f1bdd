package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Wilfredoo/jdgrowthscraper/internal/core/ports"
)

// JSONStorage keeps the seen-set and rate counters in a single flat file,
// loaded at startup and rewritten after every mutation. The file shape is an
// implementation detail, not a contract.
type JSONStorage struct {
	FilePath string
	mu       sync.RWMutex
	Data     storageData
}

type storageData struct {
	CommentedPosts []string    `json:"commented_posts"`
	CommentsToday  int         `json:"comments_today"`
	LastResetDate  string      `json:"last_reset_date"`
	HourlyComments []time.Time `json:"hourly_comments"`
	LastUpdated    time.Time   `json:"last_updated"`

	seen map[string]struct{}
}

func NewJSONStorage(filePath string) (*JSONStorage, error) {
	s := &JSONStorage{FilePath: filePath}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}
	if err := s.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	s.reindex()
	return s, nil
}

var _ ports.Storage = (*JSONStorage)(nil)

func (s *JSONStorage) loadFromFile() error {
	file, err := os.ReadFile(s.FilePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(file, &s.Data)
}

func (s *JSONStorage) saveToFile() error {
	s.Data.LastUpdated = time.Now()
	data, err := json.MarshalIndent(s.Data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.FilePath, data, 0644)
}

func (s *JSONStorage) reindex() {
	s.Data.seen = make(map[string]struct{}, len(s.Data.CommentedPosts))
	for _, id := range s.Data.CommentedPosts {
		s.Data.seen[id] = struct{}{}
	}
}

func (s *JSONStorage) IsCommented(_ context.Context, postID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.Data.seen[postID]
	return ok, nil
}

func (s *JSONStorage) MarkCommented(_ context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Data.seen[postID]; ok {
		return nil
	}
	s.Data.CommentedPosts = append(s.Data.CommentedPosts, postID)
	s.Data.seen[postID] = struct{}{}
	return s.saveToFile()
}

func (s *JSONStorage) CommentedCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Data.CommentedPosts), nil
}

func (s *JSONStorage) CommentStats(_ context.Context) (int, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Data.CommentsToday, s.Data.LastResetDate, nil
}

func (s *JSONStorage) IncrementToday(_ context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Data.LastResetDate != date {
		s.Data.CommentsToday = 1
		s.Data.LastResetDate = date
	} else {
		s.Data.CommentsToday++
	}
	return s.saveToFile()
}

func (s *JSONStorage) HourlyTimestamps(_ context.Context) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]time.Time, len(s.Data.HourlyComments))
	copy(out, s.Data.HourlyComments)
	return out, nil
}

func (s *JSONStorage) AppendTimestamp(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Drop entries older than an hour while we are here, the window is the
	// only thing anyone reads them for.
	cutoff := t.Add(-time.Hour)
	kept := s.Data.HourlyComments[:0]
	for _, ts := range s.Data.HourlyComments {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	s.Data.HourlyComments = append(kept, t)
	return s.saveToFile()
}
