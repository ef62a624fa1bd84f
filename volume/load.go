package volume

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/carbocation/pfx"
	"github.com/henghuang/nifti"
	"github.com/klauspost/compress/gzip"
)

// Load reads a single-file .nii or .nii.gz volume into a Volume, applying
// scl_slope/scl_inter. Only the first time point of a 4D+ file is kept. The
// header, datatype and payload length are validated before any voxel is
// decoded, so malformed files produce errors rather than panics.
func Load(filename string) (*Volume, error) {
	raw, err := readMaybeGzipped(filename)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", filename, err))
	}

	header, order, err := ReadHeader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	if string(header.Magic[:3]) != "n+1" {
		return nil, pfx.Err(fmt.Errorf("%s: only single-file (n+1) NIfTI is supported, not header/image pairs", filename))
	}

	dt, err := lookupDatatype(header)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", filename, err))
	}

	shape := header.Shape()
	nx, ny, nz := shape[0], 1, 1
	if len(shape) > 1 {
		ny = shape[1]
	}
	if len(shape) > 2 {
		nz = shape[2]
	}

	offset := int(header.VoxOffset)
	if offset < VoxOffset {
		return nil, pfx.Err(fmt.Errorf("%s: vox_offset %g is inside the header", filename, header.VoxOffset))
	}

	end := offset + nx*ny*nz*dt.size
	if len(raw) < end {
		return nil, pfx.Err(fmt.Errorf("%s: truncated: %s volume of %dx%dx%d needs %d bytes, file has %d", filename, dt.name, nx, ny, nz, end, len(raw)))
	}

	var data []float64
	if dt.native && order == binary.LittleEndian {
		data, err = SafelyNiftiDecode(filename, nx, ny, nz)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", filename, err))
		}
	} else {
		data = decodeVoxels(raw[offset:end], dt, order)
	}

	applyScaling(data, header.SclSlope, header.SclInter)

	out := &Volume{
		Dims:   [3]int{nx, ny, nz},
		Data:   data,
		Affine: affineFromHeader(header),
		Rank:   header.Rank(),
	}

	return out, nil
}

// SafelyNiftiDecode reads the first time point of filename through the nifti
// library. It consumes panics emitted by the library, which are inappropriate
// and must be captured in order to turn them into recoverable errors. Every
// library call, including GetAt, happens under the recover.
func SafelyNiftiDecode(filename string, nx, ny, nz int) (data []float64, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			data = nil
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	var img nifti.Nifti1Image
	img.LoadImage(filename, true)

	dims := img.GetDims()
	if atLeastOne(dims[0]) != nx || atLeastOne(dims[1]) != ny || atLeastOne(dims[2]) != nz {
		return nil, fmt.Errorf("header declares %dx%dx%d but the nifti library decoded %v", nx, ny, nz, dims)
	}

	data = make([]float64, nx*ny*nz)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				data[i+nx*(j+ny*k)] = float64(img.GetAt(i, j, k, 0))
			}
		}
	}

	return data, nil
}

// readMaybeGzipped returns the decompressed bytes of a .nii or .nii.gz file.
// Compression is detected from the gzip magic bytes rather than the suffix.
func readMaybeGzipped(filename string) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br

	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}

	return ioutil.ReadAll(r)
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// affineFromHeader prefers the sform, falls back to pixdim scaling.
func affineFromHeader(h Header) [4][4]float64 {
	out := Identity()
	if h.SformCode > 0 {
		for i := 0; i < 4; i++ {
			out[0][i] = float64(h.SrowX[i])
			out[1][i] = float64(h.SrowY[i])
			out[2][i] = float64(h.SrowZ[i])
		}
		return out
	}

	for i := 0; i < 3; i++ {
		if h.Pixdim[i+1] > 0 {
			out[i][i] = float64(h.Pixdim[i+1])
		}
	}
	return out
}
