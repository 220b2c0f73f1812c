package preprocess

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocessShape(t *testing.T) {
	sizes := []image.Point{{1, 1}, {224, 224}, {640, 480}, {37, 900}, {1000, 3}}
	for _, sz := range sizes {
		img := imaging.New(sz.X, sz.Y, color.NRGBA{R: 10, G: 200, B: 90, A: 255})
		for _, normalize := range []bool{false, true} {
			tensor := Preprocess(img, normalize)
			assert.Equal(t, [3]int{3, 224, 224}, tensor.Shape())
			assert.Len(t, tensor.Data(), Len, "size %v", sz)
		}
	}
}

func TestPreprocessBytesDecodesFormats(t *testing.T) {
	img := imaging.New(50, 30, color.NRGBA{R: 255, A: 255})

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, img, nil))

	for name, data := range map[string][]byte{"png": encodePNG(t, img), "jpeg": jpg.Bytes()} {
		tensor, err := PreprocessBytes(data, false)
		require.NoError(t, err, name)
		assert.InDelta(t, 1.0, tensor.At(0, 100, 100), 0.02, name)
		assert.InDelta(t, 0.0, tensor.At(1, 100, 100), 0.02, name)
	}
}

func TestToTensorScaling(t *testing.T) {
	img := imaging.New(224, 224, color.NRGBA{R: 255, G: 0, B: 128, A: 255})

	raw := ToTensor(img, false)
	assert.InDelta(t, 1.0, raw.At(0, 0, 0), 1e-9)
	assert.InDelta(t, 0.0, raw.At(1, 5, 7), 1e-9)
	assert.InDelta(t, 128.0/255.0, raw.At(2, 223, 223), 1e-9)

	norm := ToTensor(img, true)
	assert.InDelta(t, (1.0-Mean[0])/Std[0], norm.At(0, 0, 0), 1e-9)
	assert.InDelta(t, (0.0-Mean[1])/Std[1], norm.At(1, 5, 7), 1e-9)
	assert.InDelta(t, (128.0/255.0-Mean[2])/Std[2], norm.At(2, 223, 223), 1e-9)
}

func TestGrayscaleBecomesThreeChannels(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	for i := range img.Pix {
		img.Pix[i] = 51
	}
	tensor, err := PreprocessBytes(encodePNG(t, img), false)
	require.NoError(t, err)
	for c := 0; c < Channels; c++ {
		assert.InDelta(t, 0.2, tensor.At(c, 10, 10), 0.01)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"text":    []byte("definitely not an image"),
		"trimmed": encodePNG(t, imaging.New(10, 10, color.White))[:20],
	} {
		_, err := Decode(data)
		var unsupported *UnsupportedImageError
		assert.True(t, errors.As(err, &unsupported), name)
	}
}

func TestNewTensorValidatesLength(t *testing.T) {
	_, err := NewTensor(make([]float64, 10))
	assert.Error(t, err)

	tensor, err := NewTensor(make([]float64, Len))
	require.NoError(t, err)
	assert.Len(t, tensor.Float32(), Len)
}

func TestAugmentKeepsSize(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	img := imaging.New(224, 224, color.NRGBA{R: 120, G: 120, B: 120, A: 255})
	for i := 0; i < 5; i++ {
		out := DefaultAugmenter.Apply(img, rng)
		assert.Equal(t, 224, out.Bounds().Dx())
		assert.Equal(t, 224, out.Bounds().Dy())
	}
}

func TestAugmentBrightnessOnly(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	img := imaging.New(32, 32, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	out := Augmenter{Brightness: 0.4}.Apply(img, rng)

	r, _, _, _ := out.At(16, 16).RGBA()
	v := float64(r>>8) / 100
	assert.GreaterOrEqual(t, v, 0.59)
	assert.LessOrEqual(t, v, 1.41)
}

func TestAugmentZeroIsIdentity(t *testing.T) {
	img := imaging.New(16, 16, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	out := Augmenter{}.Apply(img, nil)
	assert.Equal(t, imaging.Clone(img).Pix, imaging.Clone(out).Pix)
}

func TestContrastKeepsUniformGrey(t *testing.T) {
	img := imaging.New(24, 24, color.NRGBA{R: 64, G: 64, B: 64, A: 255})
	for _, f := range []float64{0.6, 1, 1.4} {
		assert.Equal(t, img.Pix, contrast(img, f).Pix, "factor %v", f)
	}

	for seed := uint64(0); seed < 5; seed++ {
		out := Augmenter{Contrast: 0.4}.Apply(img, rand.New(rand.NewPCG(seed, 9)))
		assert.Equal(t, img.Pix, imaging.Clone(out).Pix, "seed %d", seed)
	}
}

func TestContrastScalesDeviationsFromMean(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 200, B: 200, A: 255})

	out := contrast(img, 1.4)
	assert.Equal(t, color.NRGBA{R: 80, G: 80, B: 80, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 220, G: 220, B: 220, A: 255}, out.NRGBAAt(1, 0))

	out = contrast(img, 0.6)
	assert.Equal(t, uint8(120), out.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(180), out.NRGBAAt(1, 0).R)
}

func TestTransparentPixelsKeepStoredColour(t *testing.T) {
	img := imaging.New(Size, Size, color.NRGBA{R: 200, G: 100, B: 50, A: 0})

	check := func(tensor Tensor) {
		assert.InDelta(t, 200.0/255, tensor.At(0, 10, 10), 5e-3)
		assert.InDelta(t, 100.0/255, tensor.At(1, 10, 10), 5e-3)
		assert.InDelta(t, 50.0/255, tensor.At(2, 10, 10), 5e-3)
	}

	check(ToTensor(img, false))

	tensor, err := PreprocessBytes(encodePNG(t, img), false)
	require.NoError(t, err)
	check(tensor)

	small := imaging.New(40, 30, color.NRGBA{R: 200, G: 100, B: 50, A: 0})
	tensor, err = PreprocessBytes(encodePNG(t, small), false)
	require.NoError(t, err)
	check(tensor)
}

func TestDecodeRejectsOversizedCanvas(t *testing.T) {
	data := encodePNG(t, imaging.New(2, 2, color.NRGBA{A: 255}))

	// IHDR data starts at byte 16: width then height, big endian, with the
	// chunk CRC over type and data at byte 29.
	binary.BigEndian.PutUint32(data[16:], 60000)
	binary.BigEndian.PutUint32(data[20:], 60000)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))

	_, err := Decode(data)
	var unsupported *UnsupportedImageError
	require.True(t, errors.As(err, &unsupported), "got %v", err)
	assert.Contains(t, unsupported.Reason, "too large")
}
