package volume

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/carbocation/pfx"
	"github.com/klauspost/compress/gzip"
)

// Write emits v as a single-file little-endian NIfTI-1 volume with FLOAT32
// voxels. When compress is set the whole stream, header included, is gzipped
// (the .nii.gz layout).
func Write(w io.Writer, v *Volume, compress bool) error {
	for i, d := range v.Dims {
		if d < 1 || d > math.MaxInt16 {
			return pfx.Err(fmt.Errorf("dimension %d has size %d, which NIfTI-1 cannot store", i, d))
		}
	}
	if len(v.Data) != v.Dims[0]*v.Dims[1]*v.Dims[2] {
		return pfx.Err(fmt.Errorf("volume %s holds %d voxels", v.Shape(), len(v.Data)))
	}

	if compress {
		gz := gzip.NewWriter(w)
		if err := encode(gz, v); err != nil {
			gz.Close()
			return err
		}
		if err := gz.Close(); err != nil {
			return pfx.Err(err)
		}
		return nil
	}

	return encode(w, v)
}

func encode(w io.Writer, v *Volume) error {
	bw := bufio.NewWriter(w)

	h := NewHeader(v.Dims, v.Affine)
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return pfx.Err(err)
	}

	// No extensions
	if _, err := bw.Write([]byte{0, 0, 0, 0}); err != nil {
		return pfx.Err(err)
	}

	var word [4]byte
	for _, val := range v.Data {
		binary.LittleEndian.PutUint32(word[:], math.Float32bits(float32(val)))
		if _, err := bw.Write(word[:]); err != nil {
			return pfx.Err(err)
		}
	}

	if err := bw.Flush(); err != nil {
		return pfx.Err(err)
	}

	return nil
}
