package raster

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads any registered image format (png, jpeg, gif, bmp, tiff, webp).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("could not decode image: %w", err)
	}
	return img, format, nil
}

func DecodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("could not open image %q: %w", path, err)
	}
	defer f.Close()
	img, format, err := Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("%q: %w", path, err)
	}
	return img, format, nil
}

// Fit scales img down so it is at most maxWidth by maxHeight, keeping the
// aspect ratio. A zero bound leaves that axis unconstrained. Images already
// inside the bounds are returned unchanged.
func Fit(img image.Image, maxWidth, maxHeight int) image.Image {
	sb := img.Bounds()
	w, h := float64(sb.Dx()), float64(sb.Dy())
	if w == 0 || h == 0 {
		return img
	}
	scale := 1.0
	if maxWidth > 0 && w > float64(maxWidth) {
		scale = float64(maxWidth) / w
	}
	if maxHeight > 0 && h*scale > float64(maxHeight) {
		scale = float64(maxHeight) / h
	}
	if scale >= 1 {
		return img
	}
	dw := max(1, int(math.Round(w*scale)))
	dh := max(1, int(math.Round(h*scale)))
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, sb, draw.Src, nil)
	return dst
}

// Posterize maps every pixel of img onto pal with Floyd-Steinberg dithering.
// Callers include a background color in pal so unpainted areas stay silent.
func Posterize(img image.Image, pal color.Palette) image.Image {
	sb := img.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, sb.Dx(), sb.Dy()), pal)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, sb.Min)
	return dst
}
