package training

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/binfill-api/internal/model"
	"github.com/Brownie44l1/binfill-api/internal/preprocess"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidDataset writes a.jpg (dark, 50%) and b.jpg (bright, 100%) with a
// matching manifest.
func solidDataset(t *testing.T) (manifest, images string) {
	t.Helper()
	dir := t.TempDir()
	images = filepath.Join(dir, "images")
	require.NoError(t, os.MkdirAll(images, 0755))

	require.NoError(t, imaging.Save(imaging.New(300, 200, color.NRGBA{R: 64, G: 64, B: 64, A: 255}), filepath.Join(images, "a.jpg")))
	require.NoError(t, imaging.Save(imaging.New(180, 260, color.NRGBA{R: 224, G: 224, B: 224, A: 255}), filepath.Join(images, "b.jpg")))

	manifest = writeFile(t, dir, "labels.csv", "filename,fill_percent\na.jpg,50\nb.jpg,100\n")
	return manifest, images
}

func tensorFor(t *testing.T, path string) preprocess.Tensor {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tensor, err := preprocess.PreprocessBytes(data, false)
	require.NoError(t, err)
	return tensor
}

func TestTrainTwoRowManifest(t *testing.T) {
	manifest, images := solidDataset(t)
	out := filepath.Join(t.TempDir(), "bin_fill_model.bin")

	cfg := DefaultConfig()
	cfg.Seed = 42
	_, losses, err := Run(context.Background(), RunOptions{
		Manifest:   manifest,
		ImageDir:   images,
		OutputPath: out,
		Config:     cfg,
	})
	require.NoError(t, err)
	require.Len(t, losses, 20)

	var early, late float64
	for i := 0; i < 5; i++ {
		early += losses[i]
		late += losses[len(losses)-1-i]
	}
	assert.Less(t, late, early, "losses %v", losses)

	net, err := model.Load(out)
	require.NoError(t, err)
	a := net.Forward(tensorFor(t, filepath.Join(images, "a.jpg")), model.Deterministic, nil)
	b := net.Forward(tensorFor(t, filepath.Join(images, "b.jpg")), model.Deterministic, nil)
	assert.Greater(t, b, a)
}

func TestDatasetItem(t *testing.T) {
	manifest, images := solidDataset(t)
	ds, err := NewDataset(manifest, images)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	require.NotNil(t, ds.Augmenter)

	ds.Augmenter = nil
	x, target, err := ds.Item(1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, target)
	assert.Len(t, x.Data(), preprocess.Len)
	assert.InDelta(t, 224.0/255.0, x.At(0, 112, 112), 0.02)
}

func TestDatasetMissingImage(t *testing.T) {
	manifest, images := solidDataset(t)
	require.NoError(t, os.Remove(filepath.Join(images, "b.jpg")))

	_, err := NewDataset(manifest, images)
	var me *ManifestError
	require.True(t, errors.As(err, &me))
	assert.Contains(t, me.Error(), "b.jpg")
}

func TestTrainAbortsOnUnreadableImage(t *testing.T) {
	manifest, images := solidDataset(t)
	ds, err := NewDataset(manifest, images)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(images, "a.jpg"), []byte("corrupt"), 0644))

	trainer, err := NewTrainer(model.NewNetwork(nil), Config{Epochs: 1, BatchSize: 1, LearningRate: 0.001, Seed: 1})
	require.NoError(t, err)
	_, err = trainer.Train(context.Background(), ds)

	var me *ManifestError
	require.True(t, errors.As(err, &me))
	var unsupported *preprocess.UnsupportedImageError
	assert.True(t, errors.As(err, &unsupported))
}

func TestRunWritesNothingOnFailure(t *testing.T) {
	manifest, images := solidDataset(t)
	require.NoError(t, os.WriteFile(filepath.Join(images, "b.jpg"), []byte("corrupt"), 0644))
	out := filepath.Join(t.TempDir(), "model.bin")

	_, _, err := Run(context.Background(), RunOptions{
		Manifest: manifest, ImageDir: images, OutputPath: out,
		Config: Config{Epochs: 1, BatchSize: 8, LearningRate: 0.001, Seed: 3},
	})
	require.Error(t, err)
	_, statErr := os.Stat(out)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestTrainHonoursCancellation(t *testing.T) {
	manifest, images := solidDataset(t)
	ds, err := NewDataset(manifest, images)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trainer, err := NewTrainer(model.NewNetwork(nil), DefaultConfig())
	require.NoError(t, err)
	losses, err := trainer.Train(ctx, ds)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, losses)
}

func TestConfigValidation(t *testing.T) {
	for _, cfg := range []Config{
		{Epochs: 0, BatchSize: 8, LearningRate: 0.001},
		{Epochs: 1, BatchSize: 0, LearningRate: 0.001},
		{Epochs: 1, BatchSize: 8, LearningRate: 0},
	} {
		_, err := NewTrainer(model.NewNetwork(nil), cfg)
		assert.Error(t, err)
	}
}

func TestAugmentationFollowsConfig(t *testing.T) {
	manifest, images := solidDataset(t)
	assert.True(t, DefaultConfig().Augment)

	ds, err := openDataset(RunOptions{Manifest: manifest, ImageDir: images, Config: DefaultConfig()})
	require.NoError(t, err)
	assert.NotNil(t, ds.Augmenter)

	ds, err = openDataset(RunOptions{Manifest: manifest, ImageDir: images, Config: Config{Epochs: 1, BatchSize: 1, LearningRate: 0.01}})
	require.NoError(t, err)
	assert.Nil(t, ds.Augmenter)
}
