package training

import (
	"context"
	"fmt"

	"github.com/Brownie44l1/binfill-api/internal/model"
	log "github.com/sirupsen/logrus"
)

type RunOptions struct {
	Manifest   string
	ImageDir   string
	OutputPath string
	Config     Config
}

// Run trains a fresh network on the manifest and writes the artifact to
// OutputPath, replacing any previous file. Nothing is written when
// training fails.
func Run(ctx context.Context, opts RunOptions) (*model.Network, []float64, error) {
	ds, err := openDataset(opts)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("[Train] Loaded %d examples from %s", ds.Len(), opts.Manifest)

	net := model.NewNetwork(newRand(opts.Config.Seed, 0))
	trainer, err := NewTrainer(net, opts.Config)
	if err != nil {
		return nil, nil, err
	}

	losses, err := trainer.Train(ctx, ds)
	if err != nil {
		return nil, losses, err
	}

	if err := model.Save(opts.OutputPath, net); err != nil {
		return nil, losses, fmt.Errorf("failed to save model: %w", err)
	}
	log.Infof("[Train] Model saved as %s", opts.OutputPath)
	return net, losses, nil
}

func openDataset(opts RunOptions) (*Dataset, error) {
	ds, err := NewDataset(opts.Manifest, opts.ImageDir)
	if err != nil {
		return nil, err
	}
	if !opts.Config.Augment {
		ds.Augmenter = nil
	}
	return ds, nil
}
