package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/RMahshie/zsweep/internal/repository"
	"github.com/RMahshie/zsweep/pkg/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Migrate applies the schema migrations in file name order
func Migrate(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		stmt, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// PostgresSweepRepository implements SweepRepository for PostgreSQL
type PostgresSweepRepository struct {
	db *sql.DB
}

// NewPostgresSweepRepository creates a new PostgreSQL sweep repository
func NewPostgresSweepRepository(db *sql.DB) repository.SweepRepository {
	return &PostgresSweepRepository{db: db}
}

const sweepColumns = `id, status, progress, config, device, files, object_keys, error_message, created_at, updated_at, completed_at`

// Create inserts a new sweep record
func (r *PostgresSweepRepository) Create(ctx context.Context, sweep *models.Sweep) error {
	config, err := json.Marshal(sweep.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal sweep config: %w", err)
	}

	query := `
		INSERT INTO sweeps (id, status, progress, config, device, files, object_keys, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.ExecContext(ctx, query,
		sweep.ID,
		sweep.Status,
		sweep.Progress,
		string(config),
		sweep.Device,
		pq.Array(nonNil(sweep.Files)),
		pq.Array(nonNil(sweep.ObjectKeys)),
		sweep.CreatedAt,
		sweep.UpdatedAt)

	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSweep(row scanner) (*models.Sweep, error) {
	var sweep models.Sweep
	var config []byte
	var errorMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&sweep.ID,
		&sweep.Status,
		&sweep.Progress,
		&config,
		&sweep.Device,
		pq.Array(&sweep.Files),
		pq.Array(&sweep.ObjectKeys),
		&errorMsg,
		&sweep.CreatedAt,
		&sweep.UpdatedAt,
		&completedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(config, &sweep.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sweep config: %w", err)
	}
	if errorMsg.Valid {
		sweep.ErrorMsg = &errorMsg.String
	}
	if completedAt.Valid {
		sweep.CompletedAt = &completedAt.Time
	}
	return &sweep, nil
}

// GetByID retrieves a sweep by ID
func (r *PostgresSweepRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Sweep, error) {
	query := `SELECT ` + sweepColumns + ` FROM sweeps WHERE id = $1`

	sweep, err := scanSweep(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return sweep, err
}

// List returns the most recent sweeps first
func (r *PostgresSweepRepository) List(ctx context.Context, limit int) ([]*models.Sweep, error) {
	query := `SELECT ` + sweepColumns + ` FROM sweeps ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sweeps []*models.Sweep
	for rows.Next() {
		sweep, err := scanSweep(rows)
		if err != nil {
			return nil, err
		}
		sweeps = append(sweeps, sweep)
	}

	return sweeps, rows.Err()
}

// UpdateStatus updates the status and progress of a sweep
func (r *PostgresSweepRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	query := `
		UPDATE sweeps
		SET status = $1, progress = $2, updated_at = NOW(),
		    completed_at = CASE WHEN $1 IN ('completed', 'cancelled') THEN NOW() ELSE completed_at END
		WHERE id = $3`

	return r.exec(ctx, query, status, progress, id)
}

// UpdateError marks a sweep failed with a message
func (r *PostgresSweepRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE sweeps
		SET status = 'failed', error_message = $1, updated_at = NOW(), completed_at = NOW()
		WHERE id = $2`

	return r.exec(ctx, query, errorMsg, id)
}

// UpdateFiles records the result files and their storage keys
func (r *PostgresSweepRepository) UpdateFiles(ctx context.Context, id uuid.UUID, files []string, objectKeys []string) error {
	query := `
		UPDATE sweeps
		SET files = $1, object_keys = $2, updated_at = NOW()
		WHERE id = $3`

	return r.exec(ctx, query, pq.Array(nonNil(files)), pq.Array(nonNil(objectKeys)), id)
}

// Delete removes a sweep; its measurements go with it
func (r *PostgresSweepRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM sweeps WHERE id = $1`, id)
}

func (r *PostgresSweepRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// StoreMeasurements appends measurements to a sweep using COPY
func (r *PostgresSweepRepository) StoreMeasurements(ctx context.Context, id uuid.UUID, measurements []models.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM measurements WHERE sweep_id = $1`, id).Scan(&next)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("measurements",
		"sweep_id", "seq", "frequency", "impedance", "phase", "amplitude_mv", "direction"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for i, m := range measurements {
		if _, err := stmt.ExecContext(ctx, id, next+i, m.Frequency, m.Impedance, m.Phase, m.Amplitude, string(m.Direction)); err != nil {
			stmt.Close()
			return err
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	return tx.Commit()
}

// GetMeasurements returns the measurements of a sweep in acquisition order
func (r *PostgresSweepRepository) GetMeasurements(ctx context.Context, id uuid.UUID) ([]models.Measurement, error) {
	query := `
		SELECT frequency, impedance, phase, amplitude_mv, direction
		FROM measurements
		WHERE sweep_id = $1
		ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	measurements := []models.Measurement{}
	for rows.Next() {
		var m models.Measurement
		var dir string
		if err := rows.Scan(&m.Frequency, &m.Impedance, &m.Phase, &m.Amplitude, &dir); err != nil {
			return nil, err
		}
		m.Direction = models.Direction(dir)
		measurements = append(measurements, m)
	}

	return measurements, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
