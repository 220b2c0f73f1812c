// Package model holds the bin fill regression network, the Monte-Carlo
// dropout estimator built on it and the analyze service the HTTP layer
// calls.
package model

import (
	"fmt"
	"math/rand/v2"

	"github.com/Brownie44l1/binfill-api/internal/preprocess"
)

const (
	HiddenUnits = 128
	DropoutRate = 0.3

	stages  = 3
	flatLen = 64 * 28 * 28
)

// channels[s] -> channels[s+1] is the width of conv stage s.
var channels = [stages + 1]int{preprocess.Channels, 16, 32, 64}

type Mode int

const (
	// Deterministic passes treat dropout as the identity.
	Deterministic Mode = iota
	// Stochastic passes draw a fresh dropout mask every call.
	Stochastic
)

func (m Mode) String() string {
	if m == Stochastic {
		return "stochastic"
	}
	return "deterministic"
}

// Network is the fill regression CNN: three conv/relu/maxpool stages
// (3->16->32->64 channels), a 128 unit hidden layer with dropout and a
// sigmoid output. It carries no mutable state, so one instance can serve
// concurrent callers.
type Network struct {
	convs [stages]conv
	fc1   dense
	fc2   dense
}

func newNetwork() *Network {
	n := &Network{
		fc1: newDense(flatLen, HiddenUnits),
		fc2: newDense(HiddenUnits, 1),
	}
	for s := range n.convs {
		n.convs[s] = newConv(channels[s], channels[s+1])
	}
	return n
}

// NewNetwork returns a randomly initialised network. A nil rng uses the
// process wide generator.
func NewNetwork(rng *rand.Rand) *Network {
	n := newNetwork()
	for _, l := range n.layers() {
		l.init(rng)
	}
	return n
}

func (n *Network) layers() []*layer {
	return []*layer{&n.convs[0].layer, &n.convs[1].layer, &n.convs[2].layer, &n.fc1.layer, &n.fc2.layer}
}

// params returns every parameter slice in a fixed order: weights then bias
// for each layer, input side first.
func (n *Network) params() [][]float64 {
	var out [][]float64
	for _, l := range n.layers() {
		out = append(out, l.w.RawMatrix().Data, l.b)
	}
	return out
}

// Fingerprint describes the architecture. Artifacts are tagged with it so a
// mismatched file fails at load.
func Fingerprint() string {
	return fmt.Sprintf("binfillcnn/in=%dx%dx%d/conv3x3=%d-%d-%d-%d/pool2/fc=%d-%d-1/dropout=%.2f/sigmoid",
		preprocess.Channels, preprocess.Size, preprocess.Size,
		channels[0], channels[1], channels[2], channels[3],
		flatLen, HiddenUnits, DropoutRate)
}

// activations holds the intermediate values of one forward pass.
type activations struct {
	cols   [stages][]float64
	act    [stages][]float64
	pool   [stages][]float64
	arg    [stages][]int
	hidden []float64
	mask   []float64
	out    float64
}

func newActivations() *activations {
	a := &activations{
		hidden: make([]float64, HiddenUnits),
		mask:   make([]float64, HiddenUnits),
	}
	for s := 0; s < stages; s++ {
		h := preprocess.Size >> s
		a.cols[s] = make([]float64, channels[s]*9*h*h)
		a.act[s] = make([]float64, channels[s+1]*h*h)
		a.pool[s] = make([]float64, channels[s+1]*(h/2)*(h/2))
		a.arg[s] = make([]int, len(a.pool[s]))
	}
	return a
}

// trunk runs the convolution stages and fc1+relu, leaving the hidden
// activations in a. Nothing here is random.
func (n *Network) trunk(x []float64, a *activations) {
	in := x
	for s := 0; s < stages; s++ {
		h := preprocess.Size >> s
		n.convs[s].forward(in, h, h, a.cols[s], a.act[s])
		maxPool(a.act[s], channels[s+1], h, h, a.pool[s], a.arg[s])
		in = a.pool[s]
	}
	n.fc1.forward(in, a.hidden)
	relu(a.hidden)
}

// head applies dropout and the output layer to the hidden activations.
func (n *Network) head(a *activations, mode Mode, rng *rand.Rand) float64 {
	keep := 1 / (1 - DropoutRate)
	for j := range a.mask {
		switch {
		case mode != Stochastic:
			a.mask[j] = 1
		case uniform(rng) < DropoutRate:
			a.mask[j] = 0
		default:
			a.mask[j] = keep
		}
	}

	w := n.fc2.w.RawMatrix().Data
	z := n.fc2.b[0]
	for j, h := range a.hidden {
		z += w[j] * h * a.mask[j]
	}
	a.out = sigmoid(z)
	return a.out
}

// Forward returns the predicted fill fraction in (0,1). In Stochastic mode
// dropout draws from rng, or from the process wide generator when rng is nil.
func (n *Network) Forward(x preprocess.Tensor, mode Mode, rng *rand.Rand) float64 {
	a := newActivations()
	n.trunk(x.Data(), a)
	return n.head(a, mode, rng)
}

// Sample runs stochastic passes and returns one fill fraction per run. The
// layers in front of dropout are deterministic, so they are evaluated once
// and only dropout and the output layer are repeated.
func (n *Network) Sample(x preprocess.Tensor, runs int) ([]float64, error) {
	if runs <= 0 {
		return nil, fmt.Errorf("runs must be positive, got %d", runs)
	}
	a := newActivations()
	n.trunk(x.Data(), a)

	out := make([]float64, runs)
	for i := range out {
		out[i] = n.head(a, Stochastic, nil)
	}
	return out, nil
}

// gradients holds the scratch buffers of one backward pass.
type gradients struct {
	hidden []float64
	act    [stages][]float64
	pool   [stages][]float64
	cols   [stages][]float64
}

func newGradients() *gradients {
	g := &gradients{hidden: make([]float64, HiddenUnits)}
	for s := 0; s < stages; s++ {
		h := preprocess.Size >> s
		g.act[s] = make([]float64, channels[s+1]*h*h)
		g.pool[s] = make([]float64, channels[s+1]*(h/2)*(h/2))
		if s > 0 {
			g.cols[s] = make([]float64, channels[s]*9*h*h)
		}
	}
	return g
}

// accumulate backpropagates dz, the loss gradient with respect to the
// output logit of the pass recorded in a, and adds every parameter gradient
// into grad.
func (n *Network) accumulate(a *activations, dz float64, grad *Network, scratch *gradients) {
	w2 := n.fc2.w.RawMatrix().Data
	gw2 := grad.fc2.w.RawMatrix().Data
	for j, h := range a.hidden {
		gw2[j] += dz * h * a.mask[j]
		if h > 0 {
			scratch.hidden[j] = dz * w2[j] * a.mask[j]
		} else {
			scratch.hidden[j] = 0
		}
	}
	grad.fc2.b[0] += dz

	last := stages - 1
	n.fc1.backward(a.pool[last], scratch.hidden, &grad.fc1, scratch.pool[last])

	for s := last; s >= 0; s-- {
		h := preprocess.Size >> s
		unpool(scratch.pool[s], a.arg[s], scratch.act[s])
		var dx []float64
		if s > 0 {
			dx = scratch.pool[s-1]
		}
		n.convs[s].backward(a.act[s], scratch.act[s], a.cols[s], h, h, &grad.convs[s], scratch.cols[s], dx)
	}
}
