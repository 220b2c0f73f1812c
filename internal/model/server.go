package model

import (
	"fmt"

	"github.com/Brownie44l1/binfill-api/internal/preprocess"
)

type Server struct {
	model     Model
	estimator *Estimator
	normalize bool
}

// NewServer wraps m. normalize selects ImageNet standardization of the
// input, which the training pipeline does not apply.
func NewServer(m Model, runs int, normalize bool) *Server {
	return &Server{
		model:     m,
		estimator: NewEstimator(m, runs),
		normalize: normalize,
	}
}

func (s *Server) Runs() int {
	return s.estimator.Runs()
}

func (s *Server) Normalize() bool {
	return s.normalize
}

// Analyze estimates the fill level of an encoded image. Undecodable input
// returns a *preprocess.UnsupportedImageError, anything else that goes wrong
// an *InferenceError.
func (s *Server) Analyze(data []byte) (*AnalyzeResponse, error) {
	tensor, err := preprocess.PreprocessBytes(data, s.normalize)
	if err != nil {
		return nil, err
	}
	return s.estimate(tensor)
}

// AnalyzeTensor estimates the fill level of a tensor the caller has already
// preprocessed. It is used as given, without normalization.
func (s *Server) AnalyzeTensor(values []float64) (*AnalyzeResponse, error) {
	tensor, err := preprocess.NewTensor(values)
	if err != nil {
		return nil, &preprocess.UnsupportedImageError{Reason: "bad tensor shape", Err: err}
	}
	return s.estimate(tensor)
}

func (s *Server) estimate(tensor preprocess.Tensor) (resp *AnalyzeResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, &InferenceError{Op: "forward pass", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	est, err := s.estimator.Estimate(tensor)
	if err != nil {
		return nil, err
	}
	return NewAnalyzeResponse(est), nil
}

func (s *Server) Close() {
	if c, ok := s.model.(interface{ Close() }); ok {
		c.Close()
	}
}
