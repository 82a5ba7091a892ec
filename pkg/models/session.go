package models

import "time"

// DeviceInfo describes an attached instrument
type DeviceInfo struct {
	Index   int    `json:"index" doc:"Enumeration index"`
	Name    string `json:"name" doc:"Device name"`
	Serial  string `json:"serial" doc:"Serial number"`
	Version string `json:"version,omitempty" doc:"Driver library version"`
}

// SessionState is the state of the bench session
type SessionState struct {
	Connected  bool         `json:"connected" doc:"Whether the analyzer is open"`
	Device     *DeviceInfo  `json:"device,omitempty" doc:"Connected device"`
	Parameters *SweepConfig `json:"parameters,omitempty" doc:"Parameters applied to the analyzer"`
	RunningID  *string      `json:"running_id,omitempty" doc:"ID of the sweep in progress"`
}

// InfoEntry is one line of the session info log
type InfoEntry struct {
	Time    time.Time `json:"time" doc:"When the message was logged"`
	Message string    `json:"message" doc:"Message text"`
}

// Live event types
const (
	EventMeasurement = "measurement"
	EventStatus      = "status"
	EventInfo        = "info"
)

// LiveEvent is pushed to live feed subscribers
type LiveEvent struct {
	Type        string       `json:"type"`
	SweepID     string       `json:"sweep_id,omitempty"`
	Status      string       `json:"status,omitempty"`
	Progress    int          `json:"progress"`
	Measurement *Measurement `json:"measurement,omitempty"`
	Message     string       `json:"message,omitempty"`
	Time        time.Time    `json:"time"`
}
