package volume

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// encodeAs packs vals in the on-disk representation of the given datatype.
func encodeAs(t *testing.T, code int16, order binary.ByteOrder, vals []float64) []byte {
	t.Helper()

	var buf bytes.Buffer
	for _, v := range vals {
		var err error
		switch code {
		case DatatypeUint8:
			err = buf.WriteByte(uint8(v))
		case DatatypeInt8:
			err = buf.WriteByte(uint8(int8(v)))
		case DatatypeInt16:
			err = binary.Write(&buf, order, int16(v))
		case DatatypeUint16:
			err = binary.Write(&buf, order, uint16(v))
		case DatatypeInt32:
			err = binary.Write(&buf, order, int32(v))
		case DatatypeUint32:
			err = binary.Write(&buf, order, uint32(v))
		case DatatypeInt64:
			err = binary.Write(&buf, order, int64(v))
		case DatatypeFloat32:
			err = binary.Write(&buf, order, float32(v))
		case DatatypeFloat64:
			err = binary.Write(&buf, order, v)
		default:
			t.Fatalf("No encoder for datatype %d", code)
		}
		if err != nil {
			t.Fatal(err)
		}
	}

	return buf.Bytes()
}

// writeRaw lays out a single-file NIfTI with an arbitrary header and payload.
func writeRaw(t *testing.T, h Header, order binary.ByteOrder, payload []byte) string {
	t.Helper()

	var buf bytes.Buffer
	if err := binary.Write(&buf, order, &h); err != nil {
		t.Fatal(err)
	}
	buf.Write([]byte{0, 0, 0, 0})
	buf.Write(payload)

	path := filepath.Join(t.TempDir(), "raw.nii")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	return path
}

func headerFor(code, bitpix int16, dims ...int16) Header {
	h := NewHeader([3]int{1, 1, 1}, Identity())
	h.Datatype = code
	h.Bitpix = bitpix
	h.Dim[0] = int16(len(dims))
	for i := 1; i < len(h.Dim); i++ {
		h.Dim[i] = 1
	}
	for i, d := range dims {
		h.Dim[i+1] = d
	}
	return h
}

func TestLoadDatatypes(t *testing.T) {
	cases := []struct {
		name   string
		code   int16
		bitpix int16
		order  binary.ByteOrder
		stored []float64
		slope  float32
		inter  float32
		want   []float64
	}{
		{"uint8", DatatypeUint8, 8, binary.LittleEndian, []float64{0, 128, 255}, 1, 0, []float64{0, 128, 255}},
		{"int8", DatatypeInt8, 8, binary.LittleEndian, []float64{-128, 0, 127}, 1, 0, []float64{-128, 0, 127}},
		{"int16 negatives", DatatypeInt16, 16, binary.LittleEndian, []float64{-1000, 0, 1000}, 1, 0, []float64{-1000, 0, 1000}},
		{"int16 big-endian", DatatypeInt16, 16, binary.BigEndian, []float64{-1000, 0, 1000}, 1, 0, []float64{-1000, 0, 1000}},
		{"uint16", DatatypeUint16, 16, binary.LittleEndian, []float64{0, 40000, 65535}, 1, 0, []float64{0, 40000, 65535}},
		{"int32 negatives", DatatypeInt32, 32, binary.LittleEndian, []float64{-70000, 5, 70000}, 1, 0, []float64{-70000, 5, 70000}},
		{"uint32", DatatypeUint32, 32, binary.LittleEndian, []float64{0, 1, 4000000000}, 1, 0, []float64{0, 1, 4000000000}},
		{"int64", DatatypeInt64, 64, binary.LittleEndian, []float64{-5, 0, 5}, 1, 0, []float64{-5, 0, 5}},
		{"float32 big-endian", DatatypeFloat32, 32, binary.BigEndian, []float64{-0.5, 0, 0.25}, 1, 0, []float64{-0.5, 0, 0.25}},
		{"float64", DatatypeFloat64, 64, binary.LittleEndian, []float64{-1.5, 0, 2.25}, 1, 0, []float64{-1.5, 0, 2.25}},
		{"int16 scaled", DatatypeInt16, 16, binary.LittleEndian, []float64{-4, 0, 4}, 0.5, 10, []float64{8, 10, 12}},
		{"uint16 scaled", DatatypeUint16, 16, binary.LittleEndian, []float64{0, 10, 20}, 2, -1, []float64{-1, 19, 39}},
		{"zero slope means unscaled", DatatypeInt16, 16, binary.LittleEndian, []float64{-4, 0, 4}, 0, 10, []float64{-4, 0, 4}},
		{"nan slope means unscaled", DatatypeInt16, 16, binary.LittleEndian, []float64{-4, 0, 4}, float32(math.NaN()), 10, []float64{-4, 0, 4}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := headerFor(c.code, c.bitpix, 3, 1, 1)
			h.SclSlope = c.slope
			h.SclInter = c.inter

			v, err := Load(writeRaw(t, h, c.order, encodeAs(t, c.code, c.order, c.stored)))
			if err != nil {
				t.Fatal(err)
			}

			if v.Dims != [3]int{3, 1, 1} {
				t.Fatalf("Loaded dims %v", v.Dims)
			}
			for i := range c.want {
				if math.Abs(v.Data[i]-c.want[i]) > 1e-9 {
					t.Fatalf("Loaded %v, expected %v", v.Data, c.want)
				}
			}
		})
	}
}

func TestLoadRank2(t *testing.T) {
	h := headerFor(DatatypeInt16, 16, 2, 3)

	v, err := Load(writeRaw(t, h, binary.LittleEndian, encodeAs(t, DatatypeInt16, binary.LittleEndian, []float64{0, 1, 2, 3, 4, 5})))
	if err != nil {
		t.Fatal(err)
	}

	if v.Rank != 2 {
		t.Errorf("Rank %d, expected 2", v.Rank)
	}
	if v.Dims != [3]int{2, 3, 1} {
		t.Errorf("Dims %v, expected (2, 3, 1)", v.Dims)
	}
	if v.At(1, 2, 0) != 5 {
		t.Errorf("Voxel (1, 2) is %g, expected 5", v.At(1, 2, 0))
	}
}

func TestLoadRank4KeepsFirstTimePoint(t *testing.T) {
	h := headerFor(DatatypeInt32, 32, 2, 2, 3, 2)

	vals := make([]float64, 2*2*3*2)
	for i := range vals {
		vals[i] = float64(i)
		if i >= 12 {
			vals[i] += 1000
		}
	}

	v, err := Load(writeRaw(t, h, binary.LittleEndian, encodeAs(t, DatatypeInt32, binary.LittleEndian, vals)))
	if err != nil {
		t.Fatal(err)
	}

	if v.Rank != 4 {
		t.Errorf("Rank %d, expected 4", v.Rank)
	}
	if v.Dims != [3]int{2, 2, 3} {
		t.Fatalf("Dims %v, expected (2, 2, 3)", v.Dims)
	}
	for i, val := range v.Data {
		if val != float64(i) {
			t.Fatalf("Voxel %d is %g; later time points leaked in", i, val)
		}
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	eight := make([]byte, 8)

	zeroBitpix := headerFor(DatatypeFloat32, 0, 4, 4, 1)
	cplx := headerFor(32, 64, 1, 1, 1)
	rgb := headerFor(128, 24, 1, 1, 1)
	mismatched := headerFor(DatatypeInt16, 32, 1, 1, 1)
	pair := headerFor(DatatypeFloat32, 32, 1, 1, 1)
	copy(pair.Magic[:], "ni1\x00")
	badOffset := headerFor(DatatypeFloat32, 32, 1, 1, 1)
	badOffset.VoxOffset = 0

	cases := []struct {
		name    string
		h       Header
		payload []byte
	}{
		{"truncated small", headerFor(DatatypeFloat32, 32, 4, 4, 1), eight},
		{"truncated large", headerFor(DatatypeFloat32, 32, 512, 512, 3), eight},
		{"truncated int16", headerFor(DatatypeInt16, 16, 4, 4, 1), eight},
		{"zero bitpix", zeroBitpix, make([]byte, 64)},
		{"complex", cplx, eight},
		{"rgb", rgb, eight},
		{"bitpix mismatch", mismatched, eight},
		{"header/image pair", pair, eight},
		{"vox_offset inside header", badOffset, eight},
	}

	for _, c := range cases {
		if _, err := Load(writeRaw(t, c.h, binary.LittleEndian, c.payload)); err == nil {
			t.Errorf("%s: expected an error", c.name)
		}
	}
}
