package preprocess

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageNet channel statistics applied when normalizing.
var (
	Mean = [Channels]float64{0.485, 0.456, 0.406}
	Std  = [Channels]float64{0.229, 0.224, 0.225}
)

// MaxPixels bounds the canvas a header may declare before any pixel data is
// decoded, about 200 MB once expanded to 4 bytes per pixel.
const MaxPixels = 50_000_000

// Decode decodes any registered format into an opaque image.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &UnsupportedImageError{Reason: "empty input"}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &UnsupportedImageError{Reason: "decode failed", Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &UnsupportedImageError{Reason: "zero sized image"}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, &UnsupportedImageError{Reason: fmt.Sprintf("image too large: %dx%d", cfg.Width, cfg.Height)}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &UnsupportedImageError{Reason: "decode failed", Err: err}
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, &UnsupportedImageError{Reason: "zero sized image"}
	}
	return Flatten(img), nil
}

// Flatten drops the alpha channel and keeps the stored colour of every
// pixel, so transparent regions are not darkened by premultiplication.
func Flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// Resize scales img to Size x Size. The aspect ratio is not preserved.
func Resize(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() == Size && b.Dy() == Size {
		return img
	}
	return resize.Resize(Size, Size, img, resize.Bilinear)
}

// ToTensor converts img to a channel-first tensor with values in [0,1],
// standardized with Mean and Std when normalize is set. Alpha is discarded
// and images that are not already Size x Size are resized first.
func ToTensor(img image.Image, normalize bool) Tensor {
	img = Resize(Flatten(img))
	b := img.Bounds()

	const plane = Size * Size
	data := make([]float64, Len)
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()

			i := y*Size + x
			data[i] = float64(r) / 65535.0
			data[plane+i] = float64(g) / 65535.0
			data[2*plane+i] = float64(bl) / 65535.0
		}
	}

	if normalize {
		for c := 0; c < Channels; c++ {
			ch := data[c*plane : (c+1)*plane]
			for i := range ch {
				ch[i] = (ch[i] - Mean[c]) / Std[c]
			}
		}
	}
	return Tensor{data: data}
}

func Preprocess(img image.Image, normalize bool) Tensor {
	return ToTensor(img, normalize)
}

func PreprocessBytes(data []byte, normalize bool) (Tensor, error) {
	img, err := Decode(data)
	if err != nil {
		return Tensor{}, err
	}
	return Preprocess(img, normalize), nil
}
