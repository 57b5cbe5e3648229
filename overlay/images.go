package overlay

import (
	"image"
	"image/draw"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"os"

	"github.com/jeanlaroche/PDFMail/model"
)

// ImageFromFile loads a PNG or JPEG from disk into an image resource.
func ImageFromFile(path string) (*model.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// FromImage converts a standard Go image to an RGB image resource,
// attaching a DeviceGray soft mask when the source has transparency.
func FromImage(src image.Image) *model.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	// NRGBA gives non-premultiplied channel values.
	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)

	pixels := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	hasAlpha := false

	for i := 0; i < w*h; i++ {
		offset := i * 4
		pixels = append(pixels, nrgba.Pix[offset], nrgba.Pix[offset+1], nrgba.Pix[offset+2])
		a := nrgba.Pix[offset+3]
		alpha = append(alpha, a)
		if a < 255 {
			hasAlpha = true
		}
	}

	img := &model.Image{
		Width:            w,
		Height:           h,
		ColorSpace:       "DeviceRGB",
		BitsPerComponent: 8,
		Data:             pixels,
	}
	if hasAlpha {
		img.SMask = &model.Image{
			Width:            w,
			Height:           h,
			ColorSpace:       "DeviceGray",
			BitsPerComponent: 8,
			Data:             alpha,
		}
	}
	return img
}
