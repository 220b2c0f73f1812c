package model

const (
	FireFillThreshold       = 95.0
	FireConfidenceThreshold = 85.0
)

// FireDetected flags a likely overflow or fire: a confident, nearly full
// reading. Both comparisons are strict.
func FireDetected(mean, confidence float64) bool {
	return mean > FireFillThreshold && confidence > FireConfidenceThreshold
}
