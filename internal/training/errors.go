package training

import "fmt"

// ManifestError reports a missing or malformed manifest, or an image it
// references that cannot be read. Line is 1-based and zero when the error
// is not tied to a row.
type ManifestError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *ManifestError) Error() string {
	msg := e.Path
	if e.Line > 0 {
		msg = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}
