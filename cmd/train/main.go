// Command train fits the bin fill model to a labelled image directory and
// writes the parameter artifact the server loads.
//
// Usage: train [-manifest data/labels.csv] [-images data/images] [-out bin_fill_model.bin]
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/binfill-api/internal/logging"
	"github.com/Brownie44l1/binfill-api/internal/training"
	log "github.com/sirupsen/logrus"
)

func main() {
	defaults := training.DefaultConfig()

	manifest := flag.String("manifest", "data/labels.csv", "CSV with filename and fill_percent columns")
	images := flag.String("images", "data/images", "Directory holding the images named in the manifest")
	out := flag.String("out", "bin_fill_model.bin", "Where to write the trained parameters")
	epochs := flag.Int("epochs", defaults.Epochs, "Number of passes over the dataset")
	batch := flag.Int("batch", defaults.BatchSize, "Mini-batch size")
	lr := flag.Float64("lr", defaults.LearningRate, "Adam learning rate")
	seed := flag.Uint64("seed", 0, "Random seed, 0 for time based")
	augment := flag.Bool("augment", defaults.Augment, "Apply colour jitter and rotation to training images")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	if err := logging.Setup(*logLevel, ""); err != nil {
		log.Fatalf("[Train] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _, err := training.Run(ctx, training.RunOptions{
		Manifest:   *manifest,
		ImageDir:   *images,
		OutputPath: *out,
		Config: training.Config{
			Epochs:       *epochs,
			BatchSize:    *batch,
			LearningRate: *lr,
			Seed:         *seed,
			Augment:      *augment,
		},
	})
	if err != nil {
		log.Fatalf("[Train] Training aborted: %v", err)
	}
}
