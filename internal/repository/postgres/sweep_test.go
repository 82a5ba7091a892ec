package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/RMahshie/zsweep/internal/repository"
	"github.com/RMahshie/zsweep/pkg/models"
)

// setupDatabase starts PostgreSQL, applies the migrations and returns a handle
func setupDatabase(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := pgContainer.Run(ctx,
		"postgres:15-alpine",
		pgContainer.WithDatabase("zsweep_test"),
		pgContainer.WithUsername("testuser"),
		pgContainer.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db))
	// Migrations are idempotent.
	require.NoError(t, Migrate(ctx, db))
	return db
}

func TestPostgresSweepRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	repo := NewPostgresSweepRepository(setupDatabase(t))

	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)
	cfg := models.DefaultSweepConfig()
	cfg.Decrease = true
	require.NoError(t, repo.Create(ctx, &models.Sweep{
		ID:        id.String(),
		Status:    models.StatusPending,
		Config:    cfg,
		Device:    "Analog Discovery 2",
		CreatedAt: now,
		UpdatedAt: now,
	}))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, cfg, got.Config)
	assert.Empty(t, got.Files)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, repo.UpdateStatus(ctx, id, models.StatusRunning, 50))

	first := []models.Measurement{
		{Frequency: 3.5e6, Impedance: 1200.5, Phase: -10, Amplitude: 100, Direction: models.DirectionIncrease},
		{Frequency: 3.51e6, Impedance: 1100.25, Phase: -12, Amplitude: 100, Direction: models.DirectionIncrease},
	}
	second := []models.Measurement{
		{Frequency: 3.51e6, Impedance: 1101, Phase: -12.5, Amplitude: 100, Direction: models.DirectionDecrease},
	}
	require.NoError(t, repo.StoreMeasurements(ctx, id, first))
	require.NoError(t, repo.StoreMeasurements(ctx, id, second))

	stored, err := repo.GetMeasurements(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, append(first, second...), stored)

	files := []string{"results/x/impedance_100mV_1000Ohm_Inc.txt"}
	keys := []string{"sweeps/x/impedance_100mV_1000Ohm_Inc.txt"}
	require.NoError(t, repo.UpdateFiles(ctx, id, files, keys))
	require.NoError(t, repo.UpdateStatus(ctx, id, models.StatusCompleted, 100))

	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, files, got.Files)
	assert.Equal(t, keys, got.ObjectKeys)
	assert.NotNil(t, got.CompletedAt)

	failed := uuid.New()
	require.NoError(t, repo.Create(ctx, &models.Sweep{ID: failed.String(), Status: models.StatusRunning, Config: cfg, CreatedAt: now.Add(time.Second), UpdatedAt: now}))
	require.NoError(t, repo.UpdateError(ctx, failed, "FDwfAnalogImpedanceStatus: Device disconnected"))

	list, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, failed.String(), list[0].ID)
	require.NotNil(t, list[0].ErrorMsg)
	assert.Equal(t, models.StatusFailed, list[0].Status)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.New(), models.StatusRunning, 1), repository.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.GetByID(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	stored, err = repo.GetMeasurements(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.ErrorIs(t, repo.Delete(ctx, id), repository.ErrNotFound)
}
