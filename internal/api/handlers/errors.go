package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RMahshie/zsweep/internal/device"
	"github.com/RMahshie/zsweep/internal/measurement"
	"github.com/RMahshie/zsweep/pkg/models"
)

// sessionError maps session and driver errors to HTTP errors
func sessionError(msg string, err error) error {
	var derr *device.DriverError
	switch {
	case errors.Is(err, models.ErrInvalidConfig):
		return huma.Error400BadRequest(err.Error(), err)
	case errors.Is(err, measurement.ErrNotConnected),
		errors.Is(err, measurement.ErrAlreadyConnected),
		errors.Is(err, measurement.ErrNoParameters),
		errors.Is(err, measurement.ErrBusy),
		errors.Is(err, measurement.ErrNotRunning):
		return huma.Error409Conflict(err.Error(), err)
	case errors.As(err, &derr), errors.Is(err, device.ErrNotOpen):
		return huma.Error502BadGateway(msg+": "+err.Error(), err)
	}
	return huma.Error500InternalServerError(msg, err)
}
