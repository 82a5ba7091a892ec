package handlers

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/zsweep/internal/measurement"
	"github.com/RMahshie/zsweep/pkg/models"
)

// SessionHandler handles the analyzer session requests
type SessionHandler struct {
	svc measurement.Service
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(svc measurement.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// ListDevices enumerates the attached analyzers
func (h *SessionHandler) ListDevices(ctx context.Context, _ *struct{}) (*models.ListDevicesResponse, error) {
	devices, err := h.svc.Devices()
	if err != nil {
		return nil, sessionError("Failed to enumerate devices", err)
	}
	resp := &models.ListDevicesResponse{}
	resp.Body.Devices = devices
	if resp.Body.Devices == nil {
		resp.Body.Devices = []models.DeviceInfo{}
	}
	return resp, nil
}

// Connect opens the analyzer
func (h *SessionHandler) Connect(ctx context.Context, _ *struct{}) (*models.ConnectResponse, error) {
	info, err := h.svc.Connect(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Connect failed")
		return nil, sessionError("Failed to open device", err)
	}
	return &models.ConnectResponse{Body: info}, nil
}

// Disconnect closes the analyzer
func (h *SessionHandler) Disconnect(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
	if err := h.svc.Disconnect(ctx); err != nil {
		return nil, sessionError("Failed to close device", err)
	}
	resp := &models.MessageResponse{}
	resp.Body.Message = "AD2 disconnected"
	return resp, nil
}

// SetParameters validates the sweep parameters and applies them to the analyzer
func (h *SessionHandler) SetParameters(ctx context.Context, req *models.SetParametersRequest) (*models.SessionStateResponse, error) {
	log.Info().
		Float64("freqStart", req.Body.FreqStart).
		Float64("freqEnd", req.Body.FreqEnd).
		Int("ampStart", req.Body.AmpStart).
		Int("ampEnd", req.Body.AmpEnd).
		Float64("reference", req.Body.Reference).
		Msg("Setting sweep parameters")

	if err := h.svc.SetParameters(ctx, req.Body); err != nil {
		return nil, sessionError("Failed to set parameters", err)
	}
	return &models.SessionStateResponse{Body: h.svc.State()}, nil
}

// GetSession returns the session state
func (h *SessionHandler) GetSession(ctx context.Context, _ *struct{}) (*models.SessionStateResponse, error) {
	return &models.SessionStateResponse{Body: h.svc.State()}, nil
}

// GetInfo returns the info log
func (h *SessionHandler) GetInfo(ctx context.Context, _ *struct{}) (*models.InfoResponse, error) {
	resp := &models.InfoResponse{}
	resp.Body.Entries = h.svc.Info()
	return resp, nil
}

// ClearInfo empties the info log
func (h *SessionHandler) ClearInfo(ctx context.Context, _ *struct{}) (*models.MessageResponse, error) {
	h.svc.ClearInfo()
	resp := &models.MessageResponse{}
	resp.Body.Message = "Info cleared"
	return resp, nil
}
