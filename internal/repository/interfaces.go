package repository

import (
	"context"
	"errors"

	"github.com/RMahshie/zsweep/pkg/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a sweep does not exist
var ErrNotFound = errors.New("sweep not found")

// SweepRepository defines the interface for sweep run data operations
type SweepRepository interface {
	Create(ctx context.Context, sweep *models.Sweep) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Sweep, error)
	List(ctx context.Context, limit int) ([]*models.Sweep, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error
	UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error
	UpdateFiles(ctx context.Context, id uuid.UUID, files []string, objectKeys []string) error
	StoreMeasurements(ctx context.Context, id uuid.UUID, measurements []models.Measurement) error
	GetMeasurements(ctx context.Context, id uuid.UUID) ([]models.Measurement, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
