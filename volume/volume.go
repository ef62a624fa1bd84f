// Package volume holds the in-memory representation of a NIfTI-1 volume and
// the code that moves it to and from disk.
package volume

import (
	"fmt"
)

// Volume is a 3D array of voxel intensities. The first axis varies fastest in
// Data, which is also the NIfTI on-disk order. When a Volume is built from a
// raster image, the first axis is the image row and the second axis is the
// image column.
type Volume struct {
	Dims   [3]int
	Data   []float64
	Affine [4][4]float64

	// Rank is the dimensionality declared by the header (dim[0]). Volumes
	// built in memory have rank 3.
	Rank int
}

// New allocates a zeroed volume with an identity affine.
func New(nx, ny, nz int) *Volume {
	return &Volume{
		Dims:   [3]int{nx, ny, nz},
		Data:   make([]float64, nx*ny*nz),
		Affine: Identity(),
		Rank:   3,
	}
}

// Identity returns the 4x4 identity affine: unit spacing, no rotation, no
// offset.
func Identity() [4][4]float64 {
	var out [4][4]float64
	for i := range out {
		out[i][i] = 1
	}
	return out
}

func (v *Volume) index(i, j, k int) int {
	return i + v.Dims[0]*(j+v.Dims[1]*k)
}

func (v *Volume) At(i, j, k int) float64 {
	return v.Data[v.index(i, j, k)]
}

func (v *Volume) Set(i, j, k int, val float64) {
	v.Data[v.index(i, j, k)] = val
}

// Slice returns a copy of the k-th slice along the third axis, first axis
// fastest.
func (v *Volume) Slice(k int) ([]float64, error) {
	if k < 0 || k >= v.Dims[2] {
		return nil, fmt.Errorf("slice %d out of range for volume with %d slices", k, v.Dims[2])
	}

	n := v.Dims[0] * v.Dims[1]
	out := make([]float64, n)
	copy(out, v.Data[k*n:(k+1)*n])

	return out, nil
}

// Shape renders the dimensions the way array shapes are usually printed,
// e.g. "(2, 2, 1)".
func (v *Volume) Shape() string {
	return fmt.Sprintf("(%d, %d, %d)", v.Dims[0], v.Dims[1], v.Dims[2])
}
