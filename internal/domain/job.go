package domain

import "strings"

// JobState is the normalized lifecycle state of a provider-side job.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether polling must stop.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// PredictionStatus enumerates enhancement-provider prediction states.
type PredictionStatus string

const (
	PredictionStarting   PredictionStatus = "starting"
	PredictionProcessing PredictionStatus = "processing"
	PredictionSucceeded  PredictionStatus = "succeeded"
	PredictionFailed     PredictionStatus = "failed"
	PredictionCanceled   PredictionStatus = "canceled"
)

// NormalizePredictionStatus lowercases and trims a raw provider status.
func NormalizePredictionStatus(raw string) PredictionStatus {
	return PredictionStatus(strings.ToLower(strings.TrimSpace(raw)))
}

// InFlight reports whether the prediction still needs polling.
func (s PredictionStatus) InFlight() bool {
	return s == PredictionStarting || s == PredictionProcessing
}
