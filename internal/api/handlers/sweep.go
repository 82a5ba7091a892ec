package handlers

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/RMahshie/zsweep/internal/measurement"
	"github.com/RMahshie/zsweep/internal/repository"
	"github.com/RMahshie/zsweep/internal/storage"
	"github.com/RMahshie/zsweep/pkg/models"
)

// cancelTimeout bounds how long a cancel request waits for the sweep to stop
const cancelTimeout = 30 * time.Second

// SweepHandler handles sweep run requests
type SweepHandler struct {
	svc   measurement.Service
	repo  repository.SweepRepository
	store storage.ResultStore
}

// NewSweepHandler creates a new sweep handler. store may be nil when uploads
// are disabled.
func NewSweepHandler(svc measurement.Service, repo repository.SweepRepository, store storage.ResultStore) *SweepHandler {
	return &SweepHandler{svc: svc, repo: repo, store: store}
}

// StartSweep starts a sweep with the parameters applied to the analyzer
func (h *SweepHandler) StartSweep(ctx context.Context, _ *struct{}) (*models.SweepResponse, error) {
	sweep, err := h.svc.Start(ctx)
	if err != nil {
		return nil, sessionError("Failed to start sweep", err)
	}
	log.Info().Str("sweepID", sweep.ID).Msg("Sweep started")
	return &models.SweepResponse{Body: sweep}, nil
}

// CancelSweep cancels the running sweep
func (h *SweepHandler) CancelSweep(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, cancelTimeout)
	defer cancel()
	if err := h.svc.Cancel(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, huma.Error504GatewayTimeout("Sweep did not stop in time", err)
		}
		return nil, sessionError("Failed to cancel sweep", err)
	}
	resp := &models.MessageResponse{}
	resp.Body.Message = "Sweep cancelled"
	return resp, nil
}

// ListSweeps returns the most recent sweeps
func (h *SweepHandler) ListSweeps(ctx context.Context, req *models.ListSweepsRequest) (*models.ListSweepsResponse, error) {
	sweeps, err := h.repo.List(ctx, req.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list sweeps", err)
	}
	resp := &models.ListSweepsResponse{}
	resp.Body.Sweeps = sweeps
	if resp.Body.Sweeps == nil {
		resp.Body.Sweeps = []*models.Sweep{}
	}
	return resp, nil
}

func (h *SweepHandler) lookup(ctx context.Context, rawID string) (uuid.UUID, *models.Sweep, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return id, nil, huma.Error400BadRequest("Invalid sweep ID", err)
	}
	sweep, err := h.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return id, nil, huma.Error404NotFound("Sweep not found", err)
	}
	if err != nil {
		return id, nil, huma.Error500InternalServerError("Failed to get sweep", err)
	}
	return id, sweep, nil
}

// GetSweep returns one sweep with its status and progress
func (h *SweepHandler) GetSweep(ctx context.Context, req *models.GetSweepRequest) (*models.SweepResponse, error) {
	_, sweep, err := h.lookup(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return &models.SweepResponse{Body: sweep}, nil
}

// GetMeasurements returns the measurements recorded so far
func (h *SweepHandler) GetMeasurements(ctx context.Context, req *models.GetSweepRequest) (*models.SweepMeasurementsResponse, error) {
	id, sweep, err := h.lookup(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	measurements, err := h.repo.GetMeasurements(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get measurements", err)
	}
	resp := &models.SweepMeasurementsResponse{}
	resp.Body.ID = sweep.ID
	resp.Body.Measurements = measurements
	return resp, nil
}

// GetFiles returns download links for the uploaded result files
func (h *SweepHandler) GetFiles(ctx context.Context, req *models.GetSweepRequest) (*models.SweepFilesResponse, error) {
	_, sweep, err := h.lookup(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if h.store == nil {
		return nil, huma.Error404NotFound("Result storage is not configured")
	}
	if !sweep.Finished() {
		return nil, huma.Error409Conflict("Sweep not yet finished", fmt.Errorf("sweep status is %s", sweep.Status))
	}

	resp := &models.SweepFilesResponse{}
	resp.Body.ID = sweep.ID
	resp.Body.Files = []models.FileLink{}
	for _, key := range sweep.ObjectKeys {
		url, err := h.store.GenerateDownloadURL(ctx, key)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to generate download URL", err)
		}
		resp.Body.Files = append(resp.Body.Files, models.FileLink{Name: path.Base(key), Key: key, URL: url})
	}
	return resp, nil
}

// DownloadFile streams one uploaded result file through the server
func (h *SweepHandler) DownloadFile(ctx context.Context, req *models.GetFileRequest) (*models.FileContentResponse, error) {
	_, sweep, err := h.lookup(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if h.store == nil {
		return nil, huma.Error404NotFound("Result storage is not configured")
	}

	var key string
	for _, k := range sweep.ObjectKeys {
		if path.Base(k) == req.Name {
			key = k
			break
		}
	}
	if key == "" {
		return nil, huma.Error404NotFound("Result file not found")
	}

	contentType, err := storage.ContentType(key)
	if err != nil {
		return nil, huma.Error404NotFound("Result file not found", err)
	}
	data, err := h.store.DownloadFile(ctx, key)
	if err != nil {
		return nil, huma.Error502BadGateway("Failed to download result file", err)
	}
	return &models.FileContentResponse{
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", req.Name),
		Body:               data,
	}, nil
}

// DeleteSweep removes a finished sweep, its measurements and its uploaded
// result files. Local result files are kept.
func (h *SweepHandler) DeleteSweep(ctx context.Context, req *models.GetSweepRequest) (*models.MessageResponse, error) {
	id, sweep, err := h.lookup(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if !sweep.Finished() {
		return nil, huma.Error409Conflict("Sweep not yet finished", fmt.Errorf("sweep status is %s", sweep.Status))
	}

	if h.store != nil {
		var errs error
		for _, key := range sweep.ObjectKeys {
			errs = multierr.Append(errs, h.store.DeleteFile(ctx, key))
		}
		if errs != nil {
			return nil, huma.Error502BadGateway("Failed to delete result files", errs)
		}
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, huma.Error404NotFound("Sweep not found", err)
		}
		return nil, huma.Error500InternalServerError("Failed to delete sweep", err)
	}
	log.Info().Str("sweepID", sweep.ID).Int("objects", len(sweep.ObjectKeys)).Msg("Sweep deleted")

	resp := &models.MessageResponse{}
	resp.Body.Message = "Sweep deleted"
	return resp, nil
}
