package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/RMahshie/zsweep/internal/api/handlers"
	"github.com/RMahshie/zsweep/internal/api/web"
	"github.com/RMahshie/zsweep/internal/measurement"
	"github.com/RMahshie/zsweep/internal/repository"
	"github.com/RMahshie/zsweep/internal/storage"
	"github.com/RMahshie/zsweep/pkg/models"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Dependencies are the services the routes are wired to. Store may be nil.
type Dependencies struct {
	Session        measurement.Service
	Sweeps         repository.SweepRepository
	Store          storage.ResultStore
	AllowedOrigins []string
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(router chi.Router, api huma.API, deps Dependencies) {
	sessionHandler := handlers.NewSessionHandler(deps.Session)
	sweepHandler := handlers.NewSweepHandler(deps.Session, deps.Sweeps, deps.Store)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.Version = Version
		resp.Body.Time = time.Now()
		return resp, nil
	})

	// Session routes
	huma.Register(api, huma.Operation{
		OperationID: "listDevices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List devices",
		Description: "Enumerates the attached analyzers",
		Tags:        []string{"Session"},
	}, sessionHandler.ListDevices)

	huma.Register(api, huma.Operation{
		OperationID: "connect",
		Method:      http.MethodPost,
		Path:        "/api/session/connect",
		Summary:     "Connect analyzer",
		Description: "Opens the first available analyzer, or the configured one",
		Tags:        []string{"Session"},
	}, sessionHandler.Connect)

	huma.Register(api, huma.Operation{
		OperationID: "disconnect",
		Method:      http.MethodPost,
		Path:        "/api/session/disconnect",
		Summary:     "Disconnect analyzer",
		Description: "Closes the analyzer; fails while a sweep is running",
		Tags:        []string{"Session"},
	}, sessionHandler.Disconnect)

	huma.Register(api, huma.Operation{
		OperationID: "setParameters",
		Method:      http.MethodPut,
		Path:        "/api/session/parameters",
		Summary:     "Set sweep parameters",
		Description: "Validates the sweep parameters and configures the analyzer with them",
		Tags:        []string{"Session"},
	}, sessionHandler.SetParameters)

	huma.Register(api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/session",
		Summary:     "Get session state",
		Description: "Returns connection state, applied parameters and the running sweep",
		Tags:        []string{"Session"},
	}, sessionHandler.GetSession)

	huma.Register(api, huma.Operation{
		OperationID: "getInfo",
		Method:      http.MethodGet,
		Path:        "/api/info",
		Summary:     "Get info log",
		Tags:        []string{"Session"},
	}, sessionHandler.GetInfo)

	huma.Register(api, huma.Operation{
		OperationID: "clearInfo",
		Method:      http.MethodDelete,
		Path:        "/api/info",
		Summary:     "Clear info log",
		Tags:        []string{"Session"},
	}, sessionHandler.ClearInfo)

	// Sweep routes
	huma.Register(api, huma.Operation{
		OperationID: "startSweep",
		Method:      http.MethodPost,
		Path:        "/api/sweeps",
		Summary:     "Start a sweep",
		Description: "Starts a sweep with the applied parameters and returns the run record",
		Tags:        []string{"Sweep"},
	}, sweepHandler.StartSweep)

	huma.Register(api, huma.Operation{
		OperationID: "cancelSweep",
		Method:      http.MethodPost,
		Path:        "/api/sweeps/current/cancel",
		Summary:     "Cancel the running sweep",
		Tags:        []string{"Sweep"},
	}, sweepHandler.CancelSweep)

	huma.Register(api, huma.Operation{
		OperationID: "listSweeps",
		Method:      http.MethodGet,
		Path:        "/api/sweeps",
		Summary:     "List sweeps",
		Tags:        []string{"Sweep"},
	}, sweepHandler.ListSweeps)

	huma.Register(api, huma.Operation{
		OperationID: "getSweep",
		Method:      http.MethodGet,
		Path:        "/api/sweeps/{id}",
		Summary:     "Get sweep",
		Description: "Returns the status and progress of a sweep",
		Tags:        []string{"Sweep"},
	}, sweepHandler.GetSweep)

	huma.Register(api, huma.Operation{
		OperationID: "getSweepMeasurements",
		Method:      http.MethodGet,
		Path:        "/api/sweeps/{id}/measurements",
		Summary:     "Get sweep measurements",
		Tags:        []string{"Sweep"},
	}, sweepHandler.GetMeasurements)

	huma.Register(api, huma.Operation{
		OperationID: "getSweepFiles",
		Method:      http.MethodGet,
		Path:        "/api/sweeps/{id}/files",
		Summary:     "Get result file links",
		Description: "Returns pre-signed download URLs for the uploaded result files",
		Tags:        []string{"Sweep"},
	}, sweepHandler.GetFiles)

	huma.Register(api, huma.Operation{
		OperationID: "downloadSweepFile",
		Method:      http.MethodGet,
		Path:        "/api/sweeps/{id}/files/{name}",
		Summary:     "Download a result file",
		Description: "Streams an uploaded result file from storage",
		Tags:        []string{"Sweep"},
	}, sweepHandler.DownloadFile)

	huma.Register(api, huma.Operation{
		OperationID: "deleteSweep",
		Method:      http.MethodDelete,
		Path:        "/api/sweeps/{id}",
		Summary:     "Delete a sweep",
		Description: "Removes a finished sweep with its measurements and uploaded result files",
		Tags:        []string{"Sweep"},
	}, sweepHandler.DeleteSweep)

	router.Handle("/ws/measurements", handlers.NewLiveHandler(deps.Session, deps.AllowedOrigins))
	router.Handle("/*", web.Handler())
}
