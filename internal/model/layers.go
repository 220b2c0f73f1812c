package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// layer holds a weight matrix and one bias per output row.
type layer struct {
	w *mat.Dense
	b []float64
}

func newLayer(rows, cols int) layer {
	return layer{w: mat.NewDense(rows, cols, nil), b: make([]float64, rows)}
}

// init draws weights and biases from U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
func (l *layer) init(rng *rand.Rand) {
	_, fanIn := l.w.Dims()
	bound := 1 / math.Sqrt(float64(fanIn))
	for _, p := range [][]float64{l.w.RawMatrix().Data, l.b} {
		for i := range p {
			p[i] = (2*uniform(rng) - 1) * bound
		}
	}
}

// conv is a 3x3 convolution with stride 1 and zero padding 1. Weights are
// stored as an out x in*9 matrix so the forward pass is a single GEMM over
// the im2col expansion of the input.
type conv struct {
	layer
}

func newConv(in, out int) conv {
	return conv{newLayer(out, in*9)}
}

func (c *conv) channels() (in, out int) {
	r, k := c.w.Dims()
	return k / 9, r
}

// forward writes relu(W*cols + b) to y, an out x h*w plane stack. cols
// receives the im2col expansion of x and is kept for the backward pass.
func (c *conv) forward(x []float64, h, w int, cols, y []float64) {
	in, out := c.channels()
	hw := h * w
	im2col(x, in, h, w, cols)
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, c.w.RawMatrix(), general(in*9, hw, cols), 0, general(out, hw, y))
	for o := 0; o < out; o++ {
		row := y[o*hw : (o+1)*hw]
		floats.AddConst(c.b[o], row)
		relu(row)
	}
}

// backward takes dy, the gradient with respect to the post-relu output y,
// and accumulates weight and bias gradients into g. When dx is non-nil the
// gradient with respect to the input is written there, using dcols as
// scratch. dy is modified in place.
func (c *conv) backward(y, dy, cols []float64, h, w int, g *conv, dcols, dx []float64) {
	in, out := c.channels()
	hw := h * w
	for i, v := range y {
		if v <= 0 {
			dy[i] = 0
		}
	}
	blas64.Gemm(blas.NoTrans, blas.Trans, 1, general(out, hw, dy), general(in*9, hw, cols), 1, g.w.RawMatrix())
	for o := 0; o < out; o++ {
		g.b[o] += floats.Sum(dy[o*hw : (o+1)*hw])
	}
	if dx == nil {
		return
	}
	blas64.Gemm(blas.Trans, blas.NoTrans, 1, c.w.RawMatrix(), general(out, hw, dy), 0, general(in*9, hw, dcols))
	col2im(dcols, in, h, w, dx)
}

// dense is a fully connected layer.
type dense struct {
	layer
}

func newDense(in, out int) dense {
	return dense{newLayer(out, in)}
}

func (d *dense) forward(x, y []float64) {
	copy(y, d.b)
	blas64.Gemv(blas.NoTrans, 1, d.w.RawMatrix(), vector(x), 1, vector(y))
}

// backward accumulates the gradients of a pass with input x and output
// gradient dy into g and writes the input gradient to dx.
func (d *dense) backward(x, dy []float64, g *dense, dx []float64) {
	blas64.Ger(1, vector(dy), vector(x), g.w.RawMatrix())
	floats.Add(g.b, dy)
	blas64.Gemv(blas.Trans, 1, d.w.RawMatrix(), vector(dy), 0, vector(dx))
}

// im2col lays out every 3x3 neighbourhood of x (c planes of h x w) as the
// columns of a c*9 x h*w matrix. Row (ci*3+ky)*3+kx holds input channel ci
// shifted by (ky-1, kx-1).
func im2col(x []float64, c, h, w int, cols []float64) {
	hw := h * w
	for ci := 0; ci < c; ci++ {
		plane := x[ci*hw : (ci+1)*hw]
		for ky := 0; ky < 3; ky++ {
			for kx := 0; kx < 3; kx++ {
				row := cols[((ci*3+ky)*3+kx)*hw:][:hw]
				for y := 0; y < h; y++ {
					dst := row[y*w : (y+1)*w]
					sy := y + ky - 1
					if sy < 0 || sy >= h {
						clear(dst)
						continue
					}
					src := plane[sy*w : (sy+1)*w]
					switch kx {
					case 0:
						dst[0] = 0
						copy(dst[1:], src[:w-1])
					case 1:
						copy(dst, src)
					case 2:
						copy(dst[:w-1], src[1:])
						dst[w-1] = 0
					}
				}
			}
		}
	}
}

// col2im is the adjoint of im2col: it sums every column entry back onto the
// input position it was copied from.
func col2im(cols []float64, c, h, w int, dx []float64) {
	clear(dx)
	hw := h * w
	for ci := 0; ci < c; ci++ {
		plane := dx[ci*hw : (ci+1)*hw]
		for ky := 0; ky < 3; ky++ {
			for kx := 0; kx < 3; kx++ {
				row := cols[((ci*3+ky)*3+kx)*hw:][:hw]
				for y := 0; y < h; y++ {
					sy := y + ky - 1
					if sy < 0 || sy >= h {
						continue
					}
					src := row[y*w : (y+1)*w]
					dst := plane[sy*w : (sy+1)*w]
					switch kx {
					case 0:
						floats.Add(dst[:w-1], src[1:])
					case 1:
						floats.Add(dst, src)
					case 2:
						floats.Add(dst[1:], src[:w-1])
					}
				}
			}
		}
	}
}

// maxPool downsamples c planes of h x w by 2 in each direction. arg records
// the flat index in x each output was taken from.
func maxPool(x []float64, c, h, w int, y []float64, arg []int) {
	oh, ow := h/2, w/2
	for ch := 0; ch < c; ch++ {
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				i := ch*h*w + 2*oy*w + 2*ox
				best := i
				for _, j := range [3]int{i + 1, i + w, i + w + 1} {
					if x[j] > x[best] {
						best = j
					}
				}
				o := ch*oh*ow + oy*ow + ox
				y[o] = x[best]
				arg[o] = best
			}
		}
	}
}

// unpool routes each pooled gradient back to the position that won the max.
func unpool(dy []float64, arg []int, dx []float64) {
	clear(dx)
	for i, j := range arg {
		dx[j] += dy[i]
	}
}

func relu(x []float64) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func general(rows, cols int, data []float64) blas64.General {
	return blas64.General{Rows: rows, Cols: cols, Data: data, Stride: cols}
}

func vector(data []float64) blas64.Vector {
	return blas64.Vector{N: len(data), Data: data, Inc: 1}
}

func uniform(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.Float64()
	}
	return rng.Float64()
}
