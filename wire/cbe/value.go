package cbe

// Tag numbers with a defined meaning in the table-store dialect. The set
// tags wrap a sequence of scalars; TagDocPathOrdinal only ever appears in
// server replies.
const (
	TagStringSet      uint64 = 3321
	TagNumberSet      uint64 = 3322
	TagBinarySet      uint64 = 3323
	TagDocPathOrdinal uint64 = 3324
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindUint
	KindNegInt
	KindFloat
	KindBytes
	KindText
	KindSequence
	KindMapping
	KindBool
	KindTagged
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindUint:
		return "uint"
	case KindNegInt:
		return "negint"
	case KindFloat:
		return "float"
	case KindBytes:
		return "bytes"
	case KindText:
		return "text"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindBool:
		return "bool"
	case KindTagged:
		return "tagged"
	default:
		return "unknown"
	}
}

// Pair is one entry of a mapping. Entry order is the producer's insertion
// order; it is preserved by the codec but irrelevant to Equal.
type Pair struct {
	Key Value
	Val Value
}

// Value is the tagged union all wire data is built from. Exactly the field
// selected by Kind is meaningful; the zero Value is null.
type Value struct {
	Kind  Kind
	Uint  uint64  // KindUint
	Neg   int64   // KindNegInt, always < 0
	Float float64 // KindFloat
	Bytes []byte  // KindBytes
	Text  string  // KindText
	Seq   []Value // KindSequence
	Map   []Pair  // KindMapping
	Bool  bool    // KindBool
	Tag   uint64  // KindTagged
	Inner *Value  // KindTagged
}

// --------------------------------------------------------------------------
// Value Factory Functions
// --------------------------------------------------------------------------

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// Uint returns an unsigned integer value.
func Uint(u uint64) Value { return Value{Kind: KindUint, Uint: u} }

// Int returns an integer value, selecting the unsigned or negative variant.
func Int(i int64) Value {
	if i < 0 {
		return Value{Kind: KindNegInt, Neg: i}
	}
	return Value{Kind: KindUint, Uint: uint64(i)}
}

// Float returns a floating point value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// Bytes returns a byte string value.
func Bytes(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// Text returns a text string value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Seq returns a sequence value.
func Seq(vs ...Value) Value { return Value{Kind: KindSequence, Seq: vs} }

// Map returns a mapping value with the given entries.
func Map(ps ...Pair) Value { return Value{Kind: KindMapping, Map: ps} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Tagged wraps v with the given tag number.
func Tagged(tag uint64, v Value) Value {
	return Value{Kind: KindTagged, Tag: tag, Inner: &v}
}

// --------------------------------------------------------------------------
// Accessors and Comparison
// --------------------------------------------------------------------------

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Lookup finds the value stored under a text key in a mapping. The second
// return value is false if v is not a mapping or the key is absent.
func (v Value) Lookup(key string) (Value, bool) {
	if v.Kind != KindMapping {
		return Value{}, false
	}
	for _, p := range v.Map {
		if p.Key.Kind == KindText && p.Key.Text == key {
			return p.Val, true
		}
	}
	return Value{}, false
}

// Equal reports structural equality. Mapping entry order is ignored;
// duplicate keys are compared pairwise which suffices for the well-formed
// values this client produces and consumes.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindUint:
		return a.Uint == b.Uint
	case KindNegInt:
		return a.Neg == b.Neg
	case KindFloat:
		return a.Float == b.Float
	case KindBytes:
		return string(a.Bytes) == string(b.Bytes)
	case KindText:
		return a.Text == b.Text
	case KindBool:
		return a.Bool == b.Bool
	case KindSequence:
		if len(a.Seq) != len(b.Seq) {
			return false
		}
		for i := range a.Seq {
			if !Equal(a.Seq[i], b.Seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(a.Map) != len(b.Map) {
			return false
		}
		for _, pa := range a.Map {
			found := false
			for _, pb := range b.Map {
				if Equal(pa.Key, pb.Key) && Equal(pa.Val, pb.Val) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case KindTagged:
		return a.Tag == b.Tag && Equal(*a.Inner, *b.Inner)
	default:
		return false
	}
}
