// Package resilience holds the error taxonomy of a fusion batch and the
// helpers that keep a failing heuristic from taking the batch down.
package resilience

import (
	"errors"
	"strings"
)

// ConfigurationError is fatal: the batch aborts before any edge is scored.
type ConfigurationError struct {
	Err      error
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err as a configuration error. Problems lists
// the individual validation failures, if any.
func NewConfigurationError(err error, problems ...string) *ConfigurationError {
	return &ConfigurationError{Err: err, Problems: problems}
}

// IsConfiguration reports whether err (or any error in its chain) is a
// ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ProducerIngestError marks a producer table that could not be loaded. It is
// recovered by the ingestor: the producer contributes zero rows.
type ProducerIngestError struct {
	Err      error
	Producer string
	Missing  bool
}

func (e *ProducerIngestError) Error() string {
	return e.Err.Error()
}

func (e *ProducerIngestError) Unwrap() error {
	return e.Err
}

// NewProducerIngestError wraps err for producer. Missing distinguishes an
// absent table from a malformed one.
func NewProducerIngestError(err error, producer string, missing bool) *ProducerIngestError {
	return &ProducerIngestError{Err: err, Producer: producer, Missing: missing}
}

// IsProducerIngest reports whether err is a ProducerIngestError.
func IsProducerIngest(err error) bool {
	var pe *ProducerIngestError
	return errors.As(err, &pe)
}

// HeuristicFailure marks a threshold heuristic that failed internally. The
// selector substitutes the heuristic's default value.
type HeuristicFailure struct {
	Err       error
	Heuristic string
}

func (e *HeuristicFailure) Error() string {
	return e.Err.Error()
}

func (e *HeuristicFailure) Unwrap() error {
	return e.Err
}

// NewHeuristicFailure wraps err for the named heuristic.
func NewHeuristicFailure(err error, heuristic string) *HeuristicFailure {
	return &HeuristicFailure{Err: err, Heuristic: heuristic}
}

// IsHeuristicFailure reports whether err is a HeuristicFailure.
func IsHeuristicFailure(err error) bool {
	var hf *HeuristicFailure
	return errors.As(err, &hf)
}

// IsMissingTable returns true when err indicates the table location does not
// exist, either as a ProducerIngestError flagged missing or by matching the
// messages returned by the filesystem and object store clients.
func IsMissingTable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProducerIngestError
	if errors.As(err, &pe) && pe.Missing {
		return true
	}

	msg := strings.ToLower(err.Error())
	missingPatterns := []string{
		"no such file or directory",
		"the system cannot find the file",
		"the specified key does not exist",
		"nosuchkey",
		"nosuchbucket",
	}
	for _, p := range missingPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
