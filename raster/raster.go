// Package raster decodes and encodes the 2D images on the non-volumetric side
// of a conversion.
package raster

import (
	"bytes"
	"image"
	"io"
	"io/ioutil"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/carbocation/pfx"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads a PNG, JPEG, GIF, BMP, TIFF or WebP image.
func Decode(r io.Reader) (image.Image, error) {
	// The image decoder swallows errors, so we won't see i/o errors if they
	// happen during image decoding. To capture these, we read the full image
	// into memory here, and pass a byte reader to the image decoder.
	imgBytes, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, pfx.Err(err)
	}

	img, err := imaging.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, pfx.Err(err)
	}

	return img, nil
}

// ToNRGBA expands any decoded image (gray, paletted, 16-bit, CMYK, ...) into
// 8-bit non-premultiplied RGBA anchored at the origin. Alpha is carried along
// but the colour channels are left unmultiplied by it.
func ToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// EncodePNG writes img as PNG. Grayscale input produces a grayscale PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return pfx.Err(err)
	}

	return nil
}
