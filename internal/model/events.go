package model

import "time"

// Alert is an informational notification surfaced to consumers.
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "info", "success", "warning", "error"
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// ControlResult is the outcome of one actuation command.
type ControlResult struct {
	Action    string    `json:"action"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionStatus is published whenever the link to the gateway
// transitions between connected and disconnected.
type ConnectionStatus struct {
	Connected bool `json:"connected"`
}
