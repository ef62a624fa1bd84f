package volume

import (
	"encoding/binary"
	"fmt"
	"math"
)

// NIfTI-1 datatype codes
const (
	DatatypeUint8   = 2
	DatatypeInt16   = 4
	DatatypeInt32   = 8
	DatatypeFloat64 = 64
	DatatypeInt8    = 256
	DatatypeUint16  = 512
	DatatypeUint32  = 768
	DatatypeInt64   = 1024
	DatatypeUint64  = 1280
)

type datatype struct {
	code int16
	name string
	size int // bytes per voxel

	// The nifti library picks its decoder from bitpix alone (8 → uint8, 16 →
	// uint16, 32 → float32, 64 → float64), so it is only right for these.
	native bool

	decode func(b []byte, order binary.ByteOrder) float64
}

var datatypes = map[int16]datatype{
	DatatypeUint8: {DatatypeUint8, "UINT8", 1, true, func(b []byte, _ binary.ByteOrder) float64 {
		return float64(b[0])
	}},
	DatatypeInt8: {DatatypeInt8, "INT8", 1, false, func(b []byte, _ binary.ByteOrder) float64 {
		return float64(int8(b[0]))
	}},
	DatatypeInt16: {DatatypeInt16, "INT16", 2, false, func(b []byte, order binary.ByteOrder) float64 {
		return float64(int16(order.Uint16(b)))
	}},
	DatatypeUint16: {DatatypeUint16, "UINT16", 2, true, func(b []byte, order binary.ByteOrder) float64 {
		return float64(order.Uint16(b))
	}},
	DatatypeInt32: {DatatypeInt32, "INT32", 4, false, func(b []byte, order binary.ByteOrder) float64 {
		return float64(int32(order.Uint32(b)))
	}},
	DatatypeUint32: {DatatypeUint32, "UINT32", 4, false, func(b []byte, order binary.ByteOrder) float64 {
		return float64(order.Uint32(b))
	}},
	DatatypeInt64: {DatatypeInt64, "INT64", 8, false, func(b []byte, order binary.ByteOrder) float64 {
		return float64(int64(order.Uint64(b)))
	}},
	DatatypeUint64: {DatatypeUint64, "UINT64", 8, false, func(b []byte, order binary.ByteOrder) float64 {
		return float64(order.Uint64(b))
	}},
	DatatypeFloat32: {DatatypeFloat32, "FLOAT32", 4, true, func(b []byte, order binary.ByteOrder) float64 {
		return float64(math.Float32frombits(order.Uint32(b)))
	}},
	DatatypeFloat64: {DatatypeFloat64, "FLOAT64", 8, true, func(b []byte, order binary.ByteOrder) float64 {
		return math.Float64frombits(order.Uint64(b))
	}},
}

// lookupDatatype rejects codes we cannot turn into real numbers (binary,
// complex, RGB, float128) and headers whose bitpix disagrees with datatype.
func lookupDatatype(h Header) (datatype, error) {
	dt, ok := datatypes[h.Datatype]
	if !ok {
		return datatype{}, fmt.Errorf("unsupported NIfTI datatype %d", h.Datatype)
	}

	if int(h.Bitpix) != 8*dt.size {
		return datatype{}, fmt.Errorf("bitpix %d does not match datatype %s (%d bits)", h.Bitpix, dt.name, 8*dt.size)
	}

	return dt, nil
}

func decodeVoxels(payload []byte, dt datatype, order binary.ByteOrder) []float64 {
	out := make([]float64, len(payload)/dt.size)
	for i := range out {
		out[i] = dt.decode(payload[i*dt.size:(i+1)*dt.size], order)
	}
	return out
}

// applyScaling maps stored values to real values. A zero or non-finite slope
// means the data is unscaled.
func applyScaling(data []float64, slope, inter float32) {
	s, b := float64(slope), float64(inter)
	if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return
	}
	if math.IsNaN(b) || math.IsInf(b, 0) {
		b = 0
	}
	if s == 1 && b == 0 {
		return
	}

	for i, v := range data {
		data[i] = v*s + b
	}
}
