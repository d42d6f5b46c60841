package model

import (
	"encoding/json"
	"time"
)

// RunStatus represents the current state of a fusion run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one ledger entry for a fusion batch.
type Run struct {
	ID                string          `json:"id"`
	Status            RunStatus       `json:"status"`
	ConfigFingerprint string          `json:"config_fingerprint"`
	OutputDir         string          `json:"output_dir"`
	Summary           json.RawMessage `json:"summary,omitempty"`
	Error             string          `json:"error,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
