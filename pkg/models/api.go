package models

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// ListDevicesResponse lists the attached analyzers
type ListDevicesResponse struct {
	Body struct {
		Devices []DeviceInfo `json:"devices" doc:"Attached devices"`
	}
}

// ConnectResponse is returned after opening the analyzer
type ConnectResponse struct {
	Body DeviceInfo
}

// MessageResponse carries a confirmation message
type MessageResponse struct {
	Body struct {
		Message string `json:"message" doc:"Confirmation message"`
	}
}

// SetParametersRequest applies sweep parameters to the analyzer
type SetParametersRequest struct {
	Body SweepConfig
}

// SessionStateResponse returns the session state
type SessionStateResponse struct {
	Body SessionState
}

// SweepResponse returns one sweep run
type SweepResponse struct {
	Body *Sweep
}

// ListSweepsRequest pages through sweep runs
type ListSweepsRequest struct {
	Limit int `query:"limit" default:"20" minimum:"1" maximum:"500" doc:"Maximum number of sweeps to return"`
}

// ListSweepsResponse lists sweep runs, newest first
type ListSweepsResponse struct {
	Body struct {
		Sweeps []*Sweep `json:"sweeps" doc:"Sweep runs"`
	}
}

// GetSweepRequest identifies a sweep run
type GetSweepRequest struct {
	ID string `path:"id" doc:"Sweep ID"`
}

// GetFileRequest identifies one result file of a sweep run
type GetFileRequest struct {
	ID   string `path:"id" doc:"Sweep ID"`
	Name string `path:"name" doc:"File name" example:"impedance_100mV_1000Ohm_Inc.txt"`
}

// FileContentResponse streams a result file from storage
type FileContentResponse struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// SweepMeasurementsResponse returns the measurements of a sweep run
type SweepMeasurementsResponse struct {
	Body struct {
		ID           string        `json:"id" doc:"Sweep ID"`
		Measurements []Measurement `json:"measurements" doc:"Measurements in acquisition order"`
	}
}

// SweepFilesResponse returns download links for the result files of a sweep
type SweepFilesResponse struct {
	Body struct {
		ID    string     `json:"id" doc:"Sweep ID"`
		Files []FileLink `json:"files" doc:"Result files"`
	}
}

// FileLink is a downloadable result file
type FileLink struct {
	Name string `json:"name" doc:"File name"`
	Key  string `json:"key" doc:"Storage key"`
	URL  string `json:"url" doc:"Pre-signed download URL"`
}

// InfoResponse returns the session info log
type InfoResponse struct {
	Body struct {
		Entries []InfoEntry `json:"entries" doc:"Info log, oldest first"`
	}
}
