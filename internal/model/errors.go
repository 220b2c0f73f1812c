package model

import "fmt"

// ArtifactLoadError reports a parameter file that is missing, corrupt or
// built for a different architecture.
type ArtifactLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ArtifactLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load artifact %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load artifact %s: %s", e.Path, e.Reason)
}

func (e *ArtifactLoadError) Unwrap() error {
	return e.Err
}

// InferenceError wraps an unexpected failure while preprocessing or running
// the model.
type InferenceError struct {
	Op  string
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed during %s: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
