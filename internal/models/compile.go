package models

import "time"

// Compile modes.
const (
	ModeStandalone = "standalone"
	ModeProject    = "project"
)

// CompileRecord describes one finished compilation.
type CompileRecord struct {
	ID          string        `json:"id"`
	Mode        string        `json:"mode"`
	Project     string        `json:"project,omitempty"`
	File        string        `json:"file,omitempty"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	OutputBytes int           `json:"output_bytes"`
	Checksum    string        `json:"checksum,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
}
