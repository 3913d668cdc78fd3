package cbe

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

// testValues builds a set of values spanning every variant
func testValues() []Value {
	return []Value{
		Null(),
		Bool(true),
		Bool(false),
		Uint(0),
		Uint(23),
		Uint(24),
		Uint(255),
		Uint(256),
		Uint(65535),
		Uint(65536),
		Uint(4294967295),
		Uint(4294967296),
		Uint(math.MaxUint64),
		Int(-1),
		Int(-24),
		Int(-25),
		Int(-256),
		Int(-257),
		Int(math.MinInt64),
		Float(0),
		Float(1.5),
		Float(-273.15),
		Text(""),
		Text("a"),
		Text("hello, wire"),
		Bytes(nil),
		Bytes([]byte{0x00, 0xFF, 0x10}),
		Seq(),
		Seq(Uint(1), Text("two"), Bool(true)),
		Map(),
		Map(
			Pair{Key: Text("TableName"), Val: Text("T")},
			Pair{Key: Text("Limit"), Val: Uint(10)},
		),
		Tagged(TagStringSet, Seq(Text("a"), Text("b"))),
		Tagged(TagNumberSet, Seq(Text("1"), Text("2.5"))),
		Tagged(TagBinarySet, Seq(Bytes([]byte{1}), Bytes([]byte{2}))),
		Tagged(TagDocPathOrdinal, Uint(3)),
		// deep nesting
		Map(Pair{
			Key: Text("Item"),
			Val: Map(Pair{
				Key: Text("tags"),
				Val: Seq(Map(Pair{Key: Text("S"), Val: Text("x")})),
			}),
		}),
	}
}

// TestRoundTrip tests that every value survives encode/decode unchanged
func TestRoundTrip(t *testing.T) {
	for i, v := range testValues() {
		enc := Encode(v)
		got, rest, err := Decode(enc)
		if err != nil {
			t.Errorf("value %d (%s): decode failed: %v", i, v.Kind, err)
			continue
		}
		if len(rest) != 0 {
			t.Errorf("value %d (%s): %d bytes left over", i, v.Kind, len(rest))
		}
		if !Equal(v, got) {
			t.Errorf("value %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v", i, v, got)
		}
	}
}

// TestDecodeGreedy tests that Decode consumes exactly one top-level value
func TestDecodeGreedy(t *testing.T) {
	stream := Encode(Uint(1))
	stream = append(stream, Encode(Text("second"))...)
	stream = append(stream, Encode(Bool(true))...)

	want := []Value{Uint(1), Text("second"), Bool(true)}
	rest := stream
	for i, w := range want {
		var got Value
		var err error
		got, rest, err = Decode(rest)
		if err != nil {
			t.Fatalf("value %d: decode failed: %v", i, err)
		}
		if !Equal(w, got) {
			t.Errorf("value %d: got %+v, want %+v", i, got, w)
		}
	}
	if len(rest) != 0 {
		t.Errorf("%d bytes left after the stream", len(rest))
	}
}

// TestHeaderForms tests that the shortest of the five length forms is
// selected across the representable range
func TestHeaderForms(t *testing.T) {
	cases := []struct {
		n    uint64
		size int
	}{
		{0, 1},
		{23, 1},
		{24, 2},
		{255, 2},
		{256, 3},
		{65535, 3},
		{65536, 5},
		{4294967295, 5},
		{4294967296, 9},
		{math.MaxUint64, 9},
	}
	for _, c := range cases {
		enc := Encode(Uint(c.n))
		if len(enc) != c.size {
			t.Errorf("Uint(%d): encoded to %d bytes, want %d", c.n, len(enc), c.size)
		}
		if got := headerSize(c.n); got != c.size {
			t.Errorf("headerSize(%d) = %d, want %d", c.n, got, c.size)
		}
	}
}

// TestSetTagBytes tests the exact wire form of a string set
func TestSetTagBytes(t *testing.T) {
	v := Tagged(TagStringSet, Seq(Text("a"), Text("b")))
	enc := Encode(v)

	// tag 3321 needs the two-byte form: 0xD9 0x0C 0xF9
	wantPrefix := []byte{0xD9, 0x0C, 0xF9}
	if !bytes.HasPrefix(enc, wantPrefix) {
		t.Fatalf("tag prefix = % X, want % X", enc[:3], wantPrefix)
	}

	inner, rest, err := Decode(enc)
	if err != nil || len(rest) != 0 {
		t.Fatalf("decode failed: %v (rest %d)", err, len(rest))
	}
	if inner.Kind != KindTagged || inner.Tag != TagStringSet {
		t.Fatalf("decoded %+v, want tag %d", inner, TagStringSet)
	}
	if len(inner.Inner.Seq) != 2 || inner.Inner.Seq[0].Text != "a" || inner.Inner.Seq[1].Text != "b" {
		t.Errorf("decoded sequence = %+v", inner.Inner.Seq)
	}

	// an empty set is still a tagged empty sequence
	empty := Encode(Tagged(TagNumberSet, Seq()))
	got, _, err := Decode(empty)
	if err != nil {
		t.Fatalf("empty set decode failed: %v", err)
	}
	if got.Kind != KindTagged || got.Tag != TagNumberSet || len(got.Inner.Seq) != 0 {
		t.Errorf("empty set decoded to %+v", got)
	}
}

// TestDecodeMalformed tests inputs decode must reject outright
func TestDecodeMalformed(t *testing.T) {
	cases := map[string][]byte{
		"reserved info 28":      {0x1C},
		"reserved info 30":      {0x1E},
		"indefinite length":     {0x1F},
		"indefinite bytes":      {0x5F},
		"indefinite text":       {0x7F},
		"break code":            {0xFF},
		"simple undefined":      {0xF7},
		"invalid utf8 text":     {0x62, 0xFF, 0xFE},
		"non-minimal too large": {0x3B, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, // negint out of range
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(in)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode(% X) error = %v, want ErrMalformed", in, err)
			}
		})
	}
}

// TestDecodeTruncated tests that cut-off input reports ErrTruncated
func TestDecodeTruncated(t *testing.T) {
	full := Encode(Map(
		Pair{Key: Text("Key"), Val: Map(Pair{Key: Text("id"), Val: Map(Pair{Key: Text("S"), Val: Text("x")})})},
	))

	for cut := 0; cut < len(full); cut++ {
		_, _, err := Decode(full[:cut])
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("Decode of %d/%d bytes: error = %v, want ErrTruncated", cut, len(full), err)
		}
	}
}

// TestDecodeFloats tests the three float widths on decode
func TestDecodeFloats(t *testing.T) {
	cases := []struct {
		in   []byte
		want float64
	}{
		{[]byte{0xF9, 0x3C, 0x00}, 1.0},       // half
		{[]byte{0xF9, 0xC0, 0x00}, -2.0},      // half
		{[]byte{0xFA, 0x3F, 0xC0, 0x00, 0x00}, 1.5}, // single
		{[]byte{0xFB, 0x40, 0x09, 0x21, 0xFB, 0x54, 0x44, 0x2D, 0x18}, 3.141592653589793}, // double
	}
	for _, c := range cases {
		v, rest, err := Decode(c.in)
		if err != nil || len(rest) != 0 {
			t.Fatalf("Decode(% X) failed: %v", c.in, err)
		}
		if v.Kind != KindFloat || v.Float != c.want {
			t.Errorf("Decode(% X) = %+v, want float %v", c.in, v, c.want)
		}
	}
}

// TestMappingEquality tests that entry order does not affect Equal
func TestMappingEquality(t *testing.T) {
	a := Map(
		Pair{Key: Text("x"), Val: Uint(1)},
		Pair{Key: Text("y"), Val: Uint(2)},
	)
	b := Map(
		Pair{Key: Text("y"), Val: Uint(2)},
		Pair{Key: Text("x"), Val: Uint(1)},
	)
	if !Equal(a, b) {
		t.Error("mappings differing only in entry order should be equal")
	}
	c := Map(Pair{Key: Text("x"), Val: Uint(1)})
	if Equal(a, c) {
		t.Error("mappings of different size should not be equal")
	}
}

// TestLookup tests mapping key lookup
func TestLookup(t *testing.T) {
	m := Map(Pair{Key: Text("TableName"), Val: Text("T")})
	if v, ok := m.Lookup("TableName"); !ok || v.Text != "T" {
		t.Errorf("Lookup(TableName) = %+v, %v", v, ok)
	}
	if _, ok := m.Lookup("missing"); ok {
		t.Error("Lookup(missing) should not be found")
	}
	if _, ok := Uint(1).Lookup("x"); ok {
		t.Error("Lookup on a non-mapping should not be found")
	}
}
