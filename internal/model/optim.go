package model

import (
	"math"
	"math/rand/v2"

	"github.com/Brownie44l1/binfill-api/internal/preprocess"
)

// Grad accumulates parameter gradients over a mini-batch. It records one
// forward pass at a time: call Forward, then Backward with the loss
// gradient for that prediction.
type Grad struct {
	sum     *Network
	pass    *activations
	scratch *gradients
}

func NewGrad() *Grad {
	return &Grad{sum: newNetwork(), pass: newActivations(), scratch: newGradients()}
}

func (g *Grad) Zero() {
	for _, p := range g.sum.params() {
		clear(p)
	}
}

func (g *Grad) Forward(n *Network, x preprocess.Tensor, mode Mode, rng *rand.Rand) float64 {
	n.trunk(x.Data(), g.pass)
	return n.head(g.pass, mode, rng)
}

// Backward adds the gradients of the recorded pass, given dPred, the
// derivative of the loss with respect to the predicted fraction.
func (g *Grad) Backward(n *Network, dPred float64) {
	p := g.pass.out
	n.accumulate(g.pass, dPred*p*(1-p), g.sum, g.scratch)
}

type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	step int
	m, v [][]float64
}

func NewAdam(learningRate float64) *Adam {
	return &Adam{LearningRate: learningRate, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

func (o *Adam) Step(n *Network, g *Grad) {
	params, grads := n.params(), g.sum.params()
	if o.m == nil {
		for _, p := range params {
			o.m = append(o.m, make([]float64, len(p)))
			o.v = append(o.v, make([]float64, len(p)))
		}
	}

	o.step++
	bc1 := 1 - math.Pow(o.Beta1, float64(o.step))
	bc2 := 1 - math.Pow(o.Beta2, float64(o.step))
	for i, p := range params {
		m, v, gr := o.m[i], o.v[i], grads[i]
		for j := range p {
			m[j] = o.Beta1*m[j] + (1-o.Beta1)*gr[j]
			v[j] = o.Beta2*v[j] + (1-o.Beta2)*gr[j]*gr[j]
			p[j] -= o.LearningRate * (m[j] / bc1) / (math.Sqrt(v[j]/bc2) + o.Epsilon)
		}
	}
}
