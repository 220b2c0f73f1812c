package training

import (
	"image"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/Brownie44l1/binfill-api/internal/preprocess"
)

// Dataset serves the examples of a manifest as training tensors. Images are
// read from disk on every access.
type Dataset struct {
	Examples []Example
	ImageDir string
	// Augmenter jitters every image before conversion; nil disables
	// augmentation.
	Augmenter *preprocess.Augmenter

	manifest string
}

func NewDataset(manifestPath, imageDir string) (*Dataset, error) {
	examples, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	for _, ex := range examples {
		if _, err := os.Stat(filepath.Join(imageDir, ex.Filename)); err != nil {
			return nil, &ManifestError{Path: manifestPath, Reason: "image " + ex.Filename + " not found", Err: err}
		}
	}

	aug := preprocess.DefaultAugmenter
	return &Dataset{
		Examples:  examples,
		ImageDir:  imageDir,
		Augmenter: &aug,
		manifest:  manifestPath,
	}, nil
}

func (d *Dataset) Len() int {
	return len(d.Examples)
}

// Item loads example i as an unnormalized tensor and its target fraction.
func (d *Dataset) Item(i int, rng *rand.Rand) (preprocess.Tensor, float64, error) {
	ex := d.Examples[i]
	img, err := d.load(ex)
	if err != nil {
		return preprocess.Tensor{}, 0, err
	}

	img = preprocess.Resize(img)
	if d.Augmenter != nil {
		img = d.Augmenter.Apply(img, rng)
	}
	return preprocess.ToTensor(img, false), ex.Target(), nil
}

func (d *Dataset) load(ex Example) (image.Image, error) {
	data, err := os.ReadFile(filepath.Join(d.ImageDir, ex.Filename))
	if err != nil {
		return nil, &ManifestError{Path: d.manifest, Reason: "cannot read image " + ex.Filename, Err: err}
	}
	img, err := preprocess.Decode(data)
	if err != nil {
		return nil, &ManifestError{Path: d.manifest, Reason: "cannot decode image " + ex.Filename, Err: err}
	}
	return img, nil
}
