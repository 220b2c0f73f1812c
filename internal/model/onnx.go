package model

import (
	"fmt"
	"os"
	"sync"

	"github.com/Brownie44l1/binfill-api/internal/preprocess"
	ort "github.com/yalue/onnxruntime_go"
)

type ONNXOptions struct {
	LibraryPath string // onnxruntime shared library, empty for the runtime default
	InputName   string
	OutputName  string
}

// ONNXModel runs an exported BinFill graph through onnxruntime. The graph
// must take a 1x3x224x224 float input and produce a 1x1 fill fraction; it
// only yields run-to-run spread when exported with dropout in training mode.
type ONNXModel struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func NewONNXModel(modelPath string, opts ONNXOptions) (*ONNXModel, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, &ArtifactLoadError{Path: modelPath, Reason: "model file unavailable", Err: err}
	}
	if opts.InputName == "" {
		opts.InputName = "input"
	}
	if opts.OutputName == "" {
		opts.OutputName = "output"
	}

	if !ort.IsInitialized() {
		if opts.LibraryPath != "" {
			ort.SetSharedLibraryPath(opts.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, &ArtifactLoadError{Path: modelPath, Reason: "failed to initialize ONNX environment", Err: err}
		}
	}

	inputShape := ort.NewShape(1, preprocess.Channels, preprocess.Size, preprocess.Size)
	outputShape := ort.NewShape(1, 1)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{opts.InputName}, []string{opts.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, &ArtifactLoadError{Path: modelPath, Reason: "failed to create ONNX session", Err: err}
	}

	return &ONNXModel{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Sample runs the session runs times on x. Runs are serialised because the
// session is bound to one pair of tensors.
func (m *ONNXModel) Sample(x preprocess.Tensor, runs int) ([]float64, error) {
	if runs <= 0 {
		return nil, fmt.Errorf("runs must be positive, got %d", runs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.inputTensor.GetData(), x.Float32())
	out := make([]float64, runs)
	for i := range out {
		if err := m.session.Run(); err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}
		out[i] = float64(m.outputTensor.GetData()[0])
	}
	return out, nil
}

func (m *ONNXModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inputTensor != nil {
		m.inputTensor.Destroy()
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
	}
	if m.session != nil {
		m.session.Destroy()
	}
	ort.DestroyEnvironment()
}
