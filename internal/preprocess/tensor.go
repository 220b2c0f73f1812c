package preprocess

import "fmt"

const (
	Channels = 3
	Size     = 224
	Len      = Channels * Size * Size
)

// Tensor is a channel-first 3x224x224 image. The backing slice is shared,
// callers must not modify it after construction.
type Tensor struct {
	data []float64
}

// NewTensor wraps data, which must hold exactly Len values laid out as
// [channel][row][column].
func NewTensor(data []float64) (Tensor, error) {
	if len(data) != Len {
		return Tensor{}, fmt.Errorf("tensor needs %d values (%dx%dx%d), got %d", Len, Channels, Size, Size, len(data))
	}
	return Tensor{data: data}, nil
}

func (t Tensor) Data() []float64 {
	return t.data
}

func (t Tensor) Shape() [3]int {
	return [3]int{Channels, Size, Size}
}

func (t Tensor) At(c, y, x int) float64 {
	return t.data[c*Size*Size+y*Size+x]
}

// Float32 returns a float32 copy, the layout the onnx runtime expects.
func (t Tensor) Float32() []float32 {
	out := make([]float32, len(t.data))
	for i, v := range t.data {
		out[i] = float32(v)
	}
	return out
}
