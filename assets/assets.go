// Package assets exposes image assets to the render backend through a
// minimal store interface. Decoding covers PNG and JPEG from the
// standard library plus BMP, TIFF, and WebP via golang.org/x/image.
package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	xdraw "golang.org/x/image/draw"
)

// Store resolves asset names to decoded images.
type Store interface {
	// Image loads and decodes the named image asset.
	Image(name string) (image.Image, error)
}

// DirStore serves assets from a directory root. Names are slash-relative
// paths; escaping the root is rejected.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

// Image loads one image from the store.
func (s *DirStore) Image(name string) (image.Image, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("assets: path %q escapes store root", name)
	}
	raw, err := os.ReadFile(filepath.Join(s.root, clean))
	if err != nil {
		return nil, fmt.Errorf("assets: reading %q: %w", name, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("assets: decoding %q: %w", name, err)
	}
	return img, nil
}

// RGBA converts a decoded image to tightly packed RGBA bytes.
func RGBA(img image.Image) (w, h int, pixels []byte) {
	b := img.Bounds()
	w, h = b.Dx(), b.Dy()
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return w, h, rgba.Pix
}

// Scale resamples an image to the given size with bilinear filtering.
// Used to conform oversized assets to texture limits before upload.
func Scale(img image.Image, w, h int) image.Image {
	if b := img.Bounds(); b.Dx() == w && b.Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// Loader adapts a Store to the backend's image-loader callback.
func Loader(s Store) func(path string) (int, int, []byte, error) {
	return func(path string) (int, int, []byte, error) {
		img, err := s.Image(path)
		if err != nil {
			return 0, 0, nil, err
		}
		w, h, pix := RGBA(img)
		return w, h, pix, nil
	}
}
