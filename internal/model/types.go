package model

import "math"

type AnalyzeResponse struct {
	FillPercentage float64 `json:"fill_percentage"`
	Confidence     float64 `json:"confidence"`
	FireDetected   bool    `json:"fire_detected"`
}

type TensorRequest struct {
	Tensor []float64 `json:"tensor"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

// NewAnalyzeResponse rounds the estimate to two decimals. The flag keeps
// the decision made on the unrounded values.
func NewAnalyzeResponse(e Estimate) *AnalyzeResponse {
	return &AnalyzeResponse{
		FillPercentage: round2(e.Mean),
		Confidence:     round2(e.Confidence),
		FireDetected:   e.FireDetected,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
