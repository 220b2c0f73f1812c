package training

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Brownie44l1/binfill-api/internal/model"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	// Seed drives shuffling, dropout and augmentation. Zero picks a
	// time based seed.
	Seed uint64
	// Augment jitters and rotates every training image.
	Augment bool
}

func DefaultConfig() Config {
	return Config{Epochs: 20, BatchSize: 8, LearningRate: 0.001, Augment: true}
}

func (c Config) validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	}
	return nil
}

// Trainer minimises the mean squared error between the network output and
// the target fractions with Adam.
type Trainer struct {
	net  *model.Network
	cfg  Config
	rng  *rand.Rand
	opt  *model.Adam
	grad *model.Grad
}

func NewTrainer(net *model.Network, cfg Config) (*Trainer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Trainer{
		net:  net,
		cfg:  cfg,
		rng:  newRand(cfg.Seed, 1),
		opt:  model.NewAdam(cfg.LearningRate),
		grad: model.NewGrad(),
	}, nil
}

// newRand returns a generator for seed and stream. A zero seed is replaced
// by the current time.
func newRand(seed, stream uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, stream))
}

// Train runs every epoch over ds and returns the average batch loss of each
// epoch. A dataset error aborts the run. Cancelling ctx stops the run
// between batches.
func (t *Trainer) Train(ctx context.Context, ds *Dataset) ([]float64, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}

	losses := make([]float64, 0, t.cfg.Epochs)
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		order := t.rng.Perm(ds.Len())

		var total float64
		var batches int
		for start := 0; start < len(order); start += t.cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return losses, err
			}
			loss, err := t.step(ds, order[start:min(start+t.cfg.BatchSize, len(order))])
			if err != nil {
				return losses, err
			}
			total += loss
			batches++
		}

		avg := total / float64(batches)
		losses = append(losses, avg)
		log.Infof("Epoch %d/%d - Loss: %.4f", epoch, t.cfg.Epochs, avg)
	}
	return losses, nil
}

// step takes one optimiser step on a mini-batch and returns its mean loss.
func (t *Trainer) step(ds *Dataset, batch []int) (float64, error) {
	t.grad.Zero()
	n := float64(len(batch))

	var loss float64
	for _, i := range batch {
		x, target, err := ds.Item(i, t.rng)
		if err != nil {
			return 0, err
		}
		pred := t.grad.Forward(t.net, x, model.Stochastic, t.rng)
		diff := pred - target
		loss += diff * diff
		t.grad.Backward(t.net, 2*diff/n)
	}
	t.opt.Step(t.net, t.grad)
	return loss / n, nil
}
