package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/carebridge/shared-care-platform/internal/model"
)

// DirectoryService holds the care directory used for `@` mention lookups.
type DirectoryService struct {
	mu      sync.RWMutex
	entries []model.DirectoryEntry
}

// NewDirectoryService creates an empty directory.
func NewDirectoryService() *DirectoryService {
	return &DirectoryService{}
}

// Add registers a directory entry, replacing any entry with the same id.
func (s *DirectoryService) Add(entry model.DirectoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == entry.ID {
			s.entries[i] = entry
			return
		}
	}
	s.entries = append(s.entries, entry)
}

// Search returns entries whose name or handle contains the query,
// case-insensitively. An empty query returns everything.
func (s *DirectoryService) Search(ctx context.Context, query string) []model.DirectoryEntry {
	query = strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.DirectoryEntry
	for _, e := range s.entries {
		if query == "" ||
			strings.Contains(strings.ToLower(e.Name), query) ||
			strings.Contains(strings.ToLower(e.Handle), query) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
