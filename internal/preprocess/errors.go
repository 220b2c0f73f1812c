package preprocess

import "fmt"

// UnsupportedImageError reports input that cannot be decoded into a
// three channel raster.
type UnsupportedImageError struct {
	Reason string
	Err    error
}

func (e *UnsupportedImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unsupported image: %s: %v", e.Reason, e.Err)
	}
	return "unsupported image: " + e.Reason
}

func (e *UnsupportedImageError) Unwrap() error {
	return e.Err
}
