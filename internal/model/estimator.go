package model

import (
	"fmt"
	"math"

	"github.com/Brownie44l1/binfill-api/internal/preprocess"
	"gonum.org/v1/gonum/stat"
)

const DefaultRuns = 10

// Model produces fill fractions in [0,1] for a preprocessed image, one per
// stochastic run.
type Model interface {
	Sample(x preprocess.Tensor, runs int) ([]float64, error)
}

// Estimate summarises the stochastic runs for one image. Confidence is a
// spread heuristic, not a calibrated probability.
type Estimate struct {
	Mean         float64
	Std          float64
	Confidence   float64
	FireDetected bool
	Runs         int
}

// Estimator turns run-to-run dropout variance into a confidence score.
type Estimator struct {
	model Model
	runs  int
}

// NewEstimator returns an estimator doing runs passes per call, DefaultRuns
// when runs is not positive.
func NewEstimator(m Model, runs int) *Estimator {
	if runs <= 0 {
		runs = DefaultRuns
	}
	return &Estimator{model: m, runs: runs}
}

func (e *Estimator) Runs() int {
	return e.runs
}

func (e *Estimator) Estimate(x preprocess.Tensor) (Estimate, error) {
	fractions, err := e.model.Sample(x, e.runs)
	if err != nil {
		return Estimate{}, &InferenceError{Op: "sampling", Err: err}
	}
	if len(fractions) != e.runs {
		return Estimate{}, &InferenceError{Op: "sampling", Err: fmt.Errorf("expected %d samples, got %d", e.runs, len(fractions))}
	}

	pct := make([]float64, len(fractions))
	for i, f := range fractions {
		if math.IsNaN(f) {
			return Estimate{}, &InferenceError{Op: "sampling", Err: fmt.Errorf("sample %d is NaN", i)}
		}
		// onnx graphs are not guaranteed to end in a sigmoid
		pct[i] = math.Min(100, math.Max(0, f*100))
	}
	return Summarize(pct), nil
}

// Summarize reduces percentage samples to their population mean and
// standard deviation, confidence and decision.
func Summarize(samples []float64) Estimate {
	if len(samples) == 0 {
		return Estimate{}
	}
	mean, std := stat.PopMeanStdDev(samples, nil)
	conf := Confidence(std)
	return Estimate{
		Mean:         mean,
		Std:          std,
		Confidence:   conf,
		FireDetected: FireDetected(mean, conf),
		Runs:         len(samples),
	}
}

// Confidence maps a standard deviation in percentage points to a score in
// [0,100]: 100 at zero spread, 0 from a spread of 50 upwards.
func Confidence(std float64) float64 {
	return math.Min(100, math.Max(0, 100-2*std))
}
