package cbe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

var (
	// ErrMalformed is returned for input the encoding can never produce:
	// reserved prefix forms, indefinite lengths, invalid UTF-8 text.
	ErrMalformed = errors.New("cbe: malformed encoding")

	// ErrTruncated is returned when the input ends inside a value. A caller
	// that is buffering a stream can treat this as "read more bytes";
	// anywhere else it is as fatal as ErrMalformed.
	ErrTruncated = errors.New("cbe: truncated input")
)

// maxNesting bounds decode recursion so hostile input cannot exhaust the
// stack.
const maxNesting = 256

// Decode reads one value from the front of b. It is greedy: the remainder
// after the first complete value is returned for the caller to inspect,
// since wire streams concatenate several top-level values.
func Decode(b []byte) (Value, []byte, error) {
	v, rest, err := decodeValue(b, 0)
	if err != nil {
		return Value{}, nil, err
	}
	return v, rest, nil
}

func decodeValue(b []byte, depth int) (Value, []byte, error) {
	if depth > maxNesting {
		return Value{}, nil, fmt.Errorf("%w: nesting exceeds %d", ErrMalformed, maxNesting)
	}
	if len(b) == 0 {
		return Value{}, nil, ErrTruncated
	}

	major := b[0] >> 5

	if major == majorSimple {
		return decodeSimple(b)
	}

	n, rest, err := decodeArg(b)
	if err != nil {
		return Value{}, nil, err
	}

	switch major {
	case majorUint:
		return Uint(n), rest, nil

	case majorNegInt:
		if n > math.MaxInt64 {
			return Value{}, nil, fmt.Errorf("%w: negative integer out of range", ErrMalformed)
		}
		return Value{Kind: KindNegInt, Neg: -1 - int64(n)}, rest, nil

	case majorBytes:
		if uint64(len(rest)) < n {
			return Value{}, nil, ErrTruncated
		}
		out := make([]byte, n)
		copy(out, rest[:n])
		return Bytes(out), rest[n:], nil

	case majorText:
		if uint64(len(rest)) < n {
			return Value{}, nil, ErrTruncated
		}
		s := rest[:n]
		if !utf8.Valid(s) {
			return Value{}, nil, fmt.Errorf("%w: text string is not valid UTF-8", ErrMalformed)
		}
		return Text(string(s)), rest[n:], nil

	case majorSequence:
		if n > uint64(len(rest)) {
			// each element needs at least one byte
			return Value{}, nil, ErrTruncated
		}
		seq := make([]Value, 0, n)
		for i := uint64(0); i < n; i++ {
			var e Value
			e, rest, err = decodeValue(rest, depth+1)
			if err != nil {
				return Value{}, nil, err
			}
			seq = append(seq, e)
		}
		return Value{Kind: KindSequence, Seq: seq}, rest, nil

	case majorMapping:
		if n > uint64(len(rest)) {
			return Value{}, nil, ErrTruncated
		}
		m := make([]Pair, 0, n)
		for i := uint64(0); i < n; i++ {
			var k, v Value
			k, rest, err = decodeValue(rest, depth+1)
			if err != nil {
				return Value{}, nil, err
			}
			v, rest, err = decodeValue(rest, depth+1)
			if err != nil {
				return Value{}, nil, err
			}
			m = append(m, Pair{Key: k, Val: v})
		}
		return Value{Kind: KindMapping, Map: m}, rest, nil

	case majorTag:
		inner, rest, err := decodeValue(rest, depth+1)
		if err != nil {
			return Value{}, nil, err
		}
		return Tagged(n, inner), rest, nil

	default:
		// unreachable, major is three bits
		return Value{}, nil, fmt.Errorf("%w: prefix byte 0x%02X", ErrMalformed, b[0])
	}
}

// decodeArg reads the additional-info argument following the prefix byte:
// an immediate small value or a 1/2/4/8 byte big-endian extension.
func decodeArg(b []byte) (uint64, []byte, error) {
	info := b[0] & 0x1F
	rest := b[1:]
	switch {
	case info < info1Byte:
		return uint64(info), rest, nil
	case info == info1Byte:
		if len(rest) < 1 {
			return 0, nil, ErrTruncated
		}
		return uint64(rest[0]), rest[1:], nil
	case info == info2Bytes:
		if len(rest) < 2 {
			return 0, nil, ErrTruncated
		}
		return uint64(binary.BigEndian.Uint16(rest)), rest[2:], nil
	case info == info4Bytes:
		if len(rest) < 4 {
			return 0, nil, ErrTruncated
		}
		return uint64(binary.BigEndian.Uint32(rest)), rest[4:], nil
	case info == info8Bytes:
		if len(rest) < 8 {
			return 0, nil, ErrTruncated
		}
		return binary.BigEndian.Uint64(rest), rest[8:], nil
	default:
		// 28-30 are reserved, 31 (indefinite length) is not part of the
		// dialect
		return 0, nil, fmt.Errorf("%w: prefix byte 0x%02X", ErrMalformed, b[0])
	}
}

// decodeSimple handles major category 7: booleans, null and floats.
func decodeSimple(b []byte) (Value, []byte, error) {
	info := b[0] & 0x1F
	rest := b[1:]
	switch info {
	case simpleFalse:
		return Bool(false), rest, nil
	case simpleTrue:
		return Bool(true), rest, nil
	case simpleNull:
		return Null(), rest, nil
	case simpleFloat16:
		if len(rest) < 2 {
			return Value{}, nil, ErrTruncated
		}
		f := float16bitsToFloat64(binary.BigEndian.Uint16(rest))
		return Float(f), rest[2:], nil
	case simpleFloat32:
		if len(rest) < 4 {
			return Value{}, nil, ErrTruncated
		}
		f := float64(math.Float32frombits(binary.BigEndian.Uint32(rest)))
		return Float(f), rest[4:], nil
	case simpleFloat64:
		if len(rest) < 8 {
			return Value{}, nil, ErrTruncated
		}
		f := math.Float64frombits(binary.BigEndian.Uint64(rest))
		return Float(f), rest[8:], nil
	default:
		return Value{}, nil, fmt.Errorf("%w: simple value 0x%02X", ErrMalformed, b[0])
	}
}

// float16bitsToFloat64 widens an IEEE 754 half-precision bit pattern.
func float16bitsToFloat64(h uint16) float64 {
	sign := float64(1)
	if h&0x8000 != 0 {
		sign = -1
	}
	exp := int(h >> 10 & 0x1F)
	frac := float64(h & 0x3FF)

	switch exp {
	case 0:
		// subnormal or zero
		return sign * frac * math.Pow(2, -24)
	case 0x1F:
		if frac == 0 {
			return sign * math.Inf(1)
		}
		return math.NaN()
	default:
		return sign * (1 + frac/1024.0) * math.Pow(2, float64(exp-15))
	}
}
