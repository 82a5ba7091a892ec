// Package memory keeps sweep runs in process memory. It backs the bench
// server when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RMahshie/zsweep/internal/repository"
	"github.com/RMahshie/zsweep/pkg/models"
	"github.com/google/uuid"
)

// SweepRepository implements repository.SweepRepository in memory
type SweepRepository struct {
	mu           sync.RWMutex
	sweeps       map[string]*models.Sweep
	measurements map[string][]models.Measurement
}

// NewSweepRepository creates an empty repository
func NewSweepRepository() repository.SweepRepository {
	return &SweepRepository{
		sweeps:       make(map[string]*models.Sweep),
		measurements: make(map[string][]models.Measurement),
	}
}

func clone(s *models.Sweep) *models.Sweep {
	c := *s
	c.Files = append([]string(nil), s.Files...)
	c.ObjectKeys = append([]string(nil), s.ObjectKeys...)
	if s.ErrorMsg != nil {
		msg := *s.ErrorMsg
		c.ErrorMsg = &msg
	}
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

func (r *SweepRepository) Create(ctx context.Context, sweep *models.Sweep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps[sweep.ID] = clone(sweep)
	return nil
}

func (r *SweepRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Sweep, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sweeps[id.String()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(s), nil
}

func (r *SweepRepository) List(ctx context.Context, limit int) ([]*models.Sweep, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Sweep, 0, len(r.sweeps))
	for _, s := range r.sweeps {
		out = append(out, clone(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SweepRepository) update(id uuid.UUID, fn func(s *models.Sweep)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sweeps[id.String()]
	if !ok {
		return repository.ErrNotFound
	}
	fn(s)
	s.UpdatedAt = time.Now()
	return nil
}

func (r *SweepRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	return r.update(id, func(s *models.Sweep) {
		s.Status = status
		s.Progress = progress
		if status == models.StatusCompleted || status == models.StatusCancelled {
			now := time.Now()
			s.CompletedAt = &now
		}
	})
}

func (r *SweepRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	return r.update(id, func(s *models.Sweep) {
		now := time.Now()
		s.Status = models.StatusFailed
		s.ErrorMsg = &errorMsg
		s.CompletedAt = &now
	})
}

func (r *SweepRepository) UpdateFiles(ctx context.Context, id uuid.UUID, files []string, objectKeys []string) error {
	return r.update(id, func(s *models.Sweep) {
		s.Files = append([]string(nil), files...)
		s.ObjectKeys = append([]string(nil), objectKeys...)
	})
}

func (r *SweepRepository) StoreMeasurements(ctx context.Context, id uuid.UUID, measurements []models.Measurement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sweeps[id.String()]; !ok {
		return repository.ErrNotFound
	}
	r.measurements[id.String()] = append(r.measurements[id.String()], measurements...)
	return nil
}

func (r *SweepRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sweeps[id.String()]; !ok {
		return repository.ErrNotFound
	}
	delete(r.sweeps, id.String())
	delete(r.measurements, id.String())
	return nil
}

func (r *SweepRepository) GetMeasurements(ctx context.Context, id uuid.UUID) ([]models.Measurement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.sweeps[id.String()]; !ok {
		return nil, repository.ErrNotFound
	}
	return append([]models.Measurement{}, r.measurements[id.String()]...), nil
}
