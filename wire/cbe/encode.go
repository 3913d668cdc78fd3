package cbe

import (
	"encoding/binary"
	"math"
)

// Major categories of the prefix byte (upper three bits).
const (
	majorUint     byte = 0
	majorNegInt   byte = 1
	majorBytes    byte = 2
	majorText     byte = 3
	majorSequence byte = 4
	majorMapping  byte = 5
	majorTag      byte = 6
	majorSimple   byte = 7
)

// Additional-info codes of the prefix byte (lower five bits).
const (
	info1Byte  byte = 24
	info2Bytes byte = 25
	info4Bytes byte = 26
	info8Bytes byte = 27

	simpleFalse   byte = 20
	simpleTrue    byte = 21
	simpleNull    byte = 22
	simpleFloat16 byte = 25
	simpleFloat32 byte = 26
	simpleFloat64 byte = 27
)

// Encode serializes a value into its self-delimiting binary form. Mapping
// entries are written in their insertion order.
func Encode(v Value) []byte {
	return AppendValue(nil, v)
}

// AppendValue appends the encoding of v to buf and returns the extended
// slice.
func AppendValue(buf []byte, v Value) []byte {
	switch v.Kind {
	case KindNull:
		return append(buf, majorSimple<<5|simpleNull)
	case KindBool:
		if v.Bool {
			return append(buf, majorSimple<<5|simpleTrue)
		}
		return append(buf, majorSimple<<5|simpleFalse)
	case KindUint:
		return appendHeader(buf, majorUint, v.Uint)
	case KindNegInt:
		// major 1 carries -1-n, so -1 encodes as 0
		return appendHeader(buf, majorNegInt, uint64(-(v.Neg + 1)))
	case KindFloat:
		buf = append(buf, majorSimple<<5|simpleFloat64)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Float))
		return append(buf, b[:]...)
	case KindBytes:
		buf = appendHeader(buf, majorBytes, uint64(len(v.Bytes)))
		return append(buf, v.Bytes...)
	case KindText:
		buf = appendHeader(buf, majorText, uint64(len(v.Text)))
		return append(buf, v.Text...)
	case KindSequence:
		buf = appendHeader(buf, majorSequence, uint64(len(v.Seq)))
		for _, e := range v.Seq {
			buf = AppendValue(buf, e)
		}
		return buf
	case KindMapping:
		buf = appendHeader(buf, majorMapping, uint64(len(v.Map)))
		for _, p := range v.Map {
			buf = AppendValue(buf, p.Key)
			buf = AppendValue(buf, p.Val)
		}
		return buf
	case KindTagged:
		buf = appendHeader(buf, majorTag, v.Tag)
		return AppendValue(buf, *v.Inner)
	default:
		// unreachable for values built through this package
		return append(buf, majorSimple<<5|simpleNull)
	}
}

// appendHeader writes the prefix byte for the given major category and the
// shortest length form that fits n.
func appendHeader(buf []byte, major byte, n uint64) []byte {
	switch {
	case n < uint64(info1Byte):
		return append(buf, major<<5|byte(n))
	case n <= math.MaxUint8:
		return append(buf, major<<5|info1Byte, byte(n))
	case n <= math.MaxUint16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n))
		return append(buf, append([]byte{major<<5 | info2Bytes}, b[:]...)...)
	case n <= math.MaxUint32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(n))
		return append(buf, append([]byte{major<<5 | info4Bytes}, b[:]...)...)
	default:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], n)
		return append(buf, append([]byte{major<<5 | info8Bytes}, b[:]...)...)
	}
}

// headerSize returns the number of bytes the header for n occupies,
// including the prefix byte.
func headerSize(n uint64) int {
	switch {
	case n < uint64(info1Byte):
		return 1
	case n <= math.MaxUint8:
		return 2
	case n <= math.MaxUint16:
		return 3
	case n <= math.MaxUint32:
		return 5
	default:
		return 9
	}
}
