package domain

import "time"

// Settings holds the tunables of the orchestration subsystem.
type Settings struct {
	// ConfidenceThreshold is the minimum confidence for an attempt to count as a success.
	ConfidenceThreshold float64

	// MaxAttempts is the number of attempts after which a gap is escalated.
	MaxAttempts int

	// MaxPasses is the global pass budget of the resolution phase.
	MaxPasses int

	// Workers bounds concurrent gap resolutions within a batch.
	Workers int

	// SemanticTopK is the number of hits requested per semantic lookup.
	SemanticTopK int

	// CollaboratorRetries is how often a failed collaborator call is retried.
	CollaboratorRetries int

	// RetryBackoff is the initial backoff between collaborator retries.
	RetryBackoff time.Duration
}

// Default values for Settings.
const (
	DefaultConfidenceThreshold = 0.6
	DefaultMaxAttempts         = 3
	DefaultMaxPasses           = 10
	DefaultWorkers             = 4
	DefaultSemanticTopK        = 5
	DefaultCollaboratorRetries = 3
	DefaultRetryBackoff        = 200 * time.Millisecond
)

// DefaultSettings returns sensible defaults for the orchestrator.
func DefaultSettings() Settings {
	return Settings{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		MaxAttempts:         DefaultMaxAttempts,
		MaxPasses:           DefaultMaxPasses,
		Workers:             DefaultWorkers,
		SemanticTopK:        DefaultSemanticTopK,
		CollaboratorRetries: DefaultCollaboratorRetries,
		RetryBackoff:        DefaultRetryBackoff,
	}
}

// WithDefaults fills zero values with defaults.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if s.ConfidenceThreshold <= 0 {
		s.ConfidenceThreshold = d.ConfidenceThreshold
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = d.MaxAttempts
	}
	if s.MaxPasses <= 0 {
		s.MaxPasses = d.MaxPasses
	}
	if s.Workers <= 0 {
		s.Workers = d.Workers
	}
	if s.SemanticTopK <= 0 {
		s.SemanticTopK = d.SemanticTopK
	}
	if s.CollaboratorRetries < 0 {
		s.CollaboratorRetries = d.CollaboratorRetries
	}
	if s.RetryBackoff <= 0 {
		s.RetryBackoff = d.RetryBackoff
	}
	return s
}
