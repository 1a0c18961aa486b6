package storage

import (
	"sort"
	"sync"

	"github.com/chunqiusha/cardforge/internal/models"
)

type PreviewStore struct {
	previews map[string]*models.Preview
	mu       sync.RWMutex
}

func New() *PreviewStore {
	return &PreviewStore{
		previews: make(map[string]*models.Preview),
	}
}

func (s *PreviewStore) Get(id string) (*models.Preview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	preview, exists := s.previews[id]
	return preview, exists
}

func (s *PreviewStore) Set(id string, preview *models.Preview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previews[id] = preview
}

// List returns all previews, newest first
func (s *PreviewStore) List() []*models.Preview {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Preview, 0, len(s.previews))
	for _, v := range s.previews {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *PreviewStore) Delete(id string) (*models.Preview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	preview, exists := s.previews[id]
	delete(s.previews, id)
	return preview, exists
}
