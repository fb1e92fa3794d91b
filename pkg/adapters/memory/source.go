package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Source implements ports.ExperienceSource over an in-memory set of
// experiences. Published fetches only see experiences marked published;
// draft fetches see everything.
type Source struct {
	mu          sync.RWMutex
	experiences map[string]*domain.Experience
}

// NewSource creates a source holding exps.
func NewSource(exps ...*domain.Experience) *Source {
	s := &Source{experiences: make(map[string]*domain.Experience)}
	for _, exp := range exps {
		s.Add(exp)
	}
	return s
}

// Add registers or replaces an experience under its id.
func (s *Source) Add(exp *domain.Experience) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experiences[exp.ID.String()] = exp
}

// Fetch implements ports.ExperienceSource.
func (s *Source) Fetch(ctx context.Context, id string, published bool) (*domain.Experience, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	exp, ok := s.experiences[id]
	s.mu.RUnlock()

	if !ok || (published && !exp.Published) {
		return nil, fmt.Errorf("%w: %s", domain.ErrExperienceNotFound, id)
	}
	return exp, nil
}

// IDs returns the known experience ids in sorted order.
func (s *Source) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.experiences))
	for id := range s.experiences {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadFile decodes a YAML fixture and adds it.
func (s *Source) LoadFile(path string) (*domain.Experience, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	exp, err := domain.DecodeExperienceYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Add(exp)
	return exp, nil
}

// LoadDir adds every .yaml/.yml fixture in dir (not recursive).
func (s *Source) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read fixture dir: %w", err)
	}

	count := 0
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if _, err := s.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
