package volume

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/carbocation/pfx"
)

const (
	HeaderSize = 348

	// Single-file NIfTI: header, 4 extension bytes, then voxels.
	VoxOffset = 352

	DatatypeFloat32 = 16

	SformAligned = 2
)

// Header is the NIfTI-1 header, field for field, so that it can be moved with
// encoding/binary.
type Header struct {
	SizeofHdr     int32
	DataType      [10]byte
	DbName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// NewHeader describes a 3D FLOAT32 volume with the given shape and affine.
// The affine goes into the sform; the qform is left unset.
func NewHeader(dims [3]int, affine [4][4]float64) Header {
	h := Header{
		SizeofHdr: HeaderSize,
		Regular:   'r',
		Datatype:  DatatypeFloat32,
		Bitpix:    32,
		VoxOffset: VoxOffset,
		SclSlope:  1,
		SformCode: SformAligned,
	}

	h.Dim[0] = 3
	for i := 1; i < len(h.Dim); i++ {
		h.Dim[i] = 1
	}
	for i, d := range dims {
		h.Dim[i+1] = int16(d)
	}

	h.Pixdim[0] = 1
	for i := 0; i < 3; i++ {
		h.Pixdim[i+1] = float32(affine[i][i])
	}

	for i := 0; i < 4; i++ {
		h.SrowX[i] = float32(affine[0][i])
		h.SrowY[i] = float32(affine[1][i])
		h.SrowZ[i] = float32(affine[2][i])
	}

	copy(h.Magic[:], "n+1\x00")

	return h
}

// Rank is dim[0], the number of meaningful dimensions.
func (h Header) Rank() int {
	return int(h.Dim[0])
}

// Shape returns dim[1..Rank].
func (h Header) Shape() []int {
	n := h.Rank()
	if n > 7 {
		n = 7
	}
	out := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, int(h.Dim[i]))
	}
	return out
}

func (h Header) validate() error {
	magic := string(h.Magic[:3])
	if magic != "n+1" && magic != "ni1" {
		return fmt.Errorf("unrecognized NIfTI magic %q", h.Magic[:])
	}
	if h.Rank() < 1 || h.Rank() > 7 {
		return fmt.Errorf("dim[0] of %d is outside 1-7", h.Rank())
	}
	for i, d := range h.Shape() {
		if d < 1 {
			return fmt.Errorf("dim[%d] is %d", i+1, d)
		}
	}

	return nil
}

// ReadHeader decodes and validates a NIfTI-1 header of either byte order.
func ReadHeader(r io.Reader) (Header, binary.ByteOrder, error) {
	var h Header

	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return h, nil, pfx.Err(fmt.Errorf("reading NIfTI header: %w", err))
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(buf) == HeaderSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(buf) == HeaderSize:
		order = binary.BigEndian
	default:
		return h, nil, pfx.Err(fmt.Errorf("not a NIfTI-1 file: sizeof_hdr is not %d in either byte order", HeaderSize))
	}

	if err := binary.Read(bytes.NewReader(buf), order, &h); err != nil {
		return h, nil, pfx.Err(err)
	}

	if err := h.validate(); err != nil {
		return h, nil, pfx.Err(err)
	}

	return h, order, nil
}

// ReadHeaderFile reads the header of a .nii or .nii.gz file.
func ReadHeaderFile(filename string) (Header, error) {
	raw, err := readMaybeGzipped(filename)
	if err != nil {
		return Header{}, pfx.Err(err)
	}

	h, _, err := ReadHeader(bytes.NewReader(raw))
	return h, err
}

// IsNiftiPath reports whether filename carries a NIfTI suffix we can write.
func IsNiftiPath(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".nii") || strings.HasSuffix(lower, ".nii.gz")
}

// IsCompressedPath reports whether the volume at filename is gzipped.
func IsCompressedPath(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".gz")
}
