// Package convert turns raster images into single-slice NIfTI volumes and
// NIfTI volumes back into grayscale PNGs.
package convert

import (
	"image"
	"image/color"
	"math"

	"github.com/carbocation/niiconvert/volume"
	"gonum.org/v1/gonum/floats"
)

// Rec. 601 luma weights
const (
	LumaR = 0.299
	LumaG = 0.587
	LumaB = 0.114
)

// MaxIntensity is the full-scale value of an 8-bit channel.
const MaxIntensity = 255.0

// Luma returns the grayscale intensity of c in the 0-255 range. Alpha is
// ignored.
func Luma(c color.NRGBA) float64 {
	return LumaR*float64(c.R) + LumaG*float64(c.G) + LumaB*float64(c.B)
}

// ImageToVolume builds an (H, W, 1) volume of normalized luma. Row y of the
// image becomes index y along the first axis, column x becomes index x along
// the second. Values are divided by 255 and not clamped.
func ImageToVolume(img *image.NRGBA) *volume.Volume {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()

	out := volume.New(h, w, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			intensity := Luma(img.NRGBAAt(b.Min.X+x, b.Min.Y+y))
			out.Set(y, x, 0, intensity/MaxIntensity)
		}
	}

	return out
}

// SliceIndex picks the slice of v to render: the middle one (integer
// division) for 3D data, and the only one for 2D data.
func SliceIndex(v *volume.Volume) int {
	if v.Rank == 2 {
		return 0
	}

	return v.Dims[2] / 2
}

// RescaleMinMax maps vals linearly so that the smallest becomes 0 and the
// largest 255, truncating toward zero. Non-finite values do not take part in
// the range and come out as 0. A slice with no spread (including one with no
// finite values) comes out as all zeros.
func RescaleMinMax(vals []float64) []uint8 {
	out := make([]uint8, len(vals))

	finite := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return out
	}

	lo, hi := floats.Min(finite), floats.Max(finite)
	if hi == lo {
		return out
	}

	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = uint8((v - lo) / (hi - lo) * MaxIntensity)
	}

	return out
}

// VolumeToImage renders the slice chosen by SliceIndex as an 8-bit grayscale
// image whose height is the first volume axis and whose width is the second.
func VolumeToImage(v *volume.Volume) (*image.Gray, error) {
	slice, err := v.Slice(SliceIndex(v))
	if err != nil {
		return nil, err
	}

	h, w := v.Dims[0], v.Dims[1]
	scaled := RescaleMinMax(slice)

	out := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			out.SetGray(x, y, color.Gray{Y: scaled[y+h*x]})
		}
	}

	return out, nil
}
