// Package raster holds point-in-time RGBA snapshots of a drawing surface.
//
// A Buffer is row-major with four bytes per pixel (r, g, b, a) and straight
// (non-premultiplied) alpha, which is what a canvas hands out when it is read
// back. Buffers are never modified after construction.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Pixel is a single 8-bit RGBA sample with straight alpha.
type Pixel = color.NRGBA

const bytesPerPixel = 4

var ErrSize = errors.New("raster: pixel data does not match dimensions")

type Buffer struct {
	Width  int
	Height int
	pix    []uint8
}

// FromNRGBA copies pix, which must hold width*height straight-alpha RGBA pixels.
func FromNRGBA(width, height int, pix []uint8) (*Buffer, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrSize, width, height)
	}
	if len(pix) != width*height*bytesPerPixel {
		return nil, fmt.Errorf("%w: %dx%d needs %d bytes, got %d", ErrSize, width, height, width*height*bytesPerPixel, len(pix))
	}
	out := make([]uint8, len(pix))
	copy(out, pix)
	return &Buffer{Width: width, Height: height, pix: out}, nil
}

// FromPremultiplied copies premultiplied RGBA data (the layout GPU surfaces
// read back) and un-premultiplies it.
func FromPremultiplied(width, height int, pix []uint8) (*Buffer, error) {
	if width < 0 || height < 0 || len(pix) != width*height*bytesPerPixel {
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrSize, width, height, len(pix))
	}
	src := &image.RGBA{Pix: pix, Stride: width * bytesPerPixel, Rect: image.Rect(0, 0, width, height)}
	return Snapshot(src), nil
}

// Snapshot copies img into a new Buffer anchored at (0, 0).
func Snapshot(img image.Image) *Buffer {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return &Buffer{Width: b.Dx(), Height: b.Dy(), pix: dst.Pix}
}

// At returns the pixel at column x, row y. Coordinates outside the buffer
// return a fully transparent pixel.
func (b *Buffer) At(x, y int) Pixel {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return Pixel{}
	}
	i := (y*b.Width + x) * bytesPerPixel
	return Pixel{R: b.pix[i], G: b.pix[i+1], B: b.pix[i+2], A: b.pix[i+3]}
}

// Image returns a copy of the buffer as an *image.NRGBA.
func (b *Buffer) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	copy(img.Pix, b.pix)
	return img
}

// Empty reports whether the buffer has no pixels to scan.
func (b *Buffer) Empty() bool {
	return b.Width == 0 || b.Height == 0
}
