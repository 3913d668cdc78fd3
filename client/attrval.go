package client

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/fentonlabs/daxc/wire/cbe"
	"github.com/fentonlabs/daxc/wire/common"
)

// docPathOrdinalKey is the receive-only discriminator for document path
// ordinals (wire tag 3324).
const docPathOrdinalKey = "_document_path_ordinal"

// --------------------------------------------------------------------------
// Attribute map -> wire value
// --------------------------------------------------------------------------

// toCBE converts a request parameter tree to its wire value. Maps whose
// sole key is a set discriminator become tagged sequences; everything else
// converts structurally. Mapping keys are emitted in sorted order so one
// conversion is deterministic.
func toCBE(v any) (cbe.Value, error) {
	switch t := v.(type) {
	case nil:
		return cbe.Null(), nil
	case bool:
		return cbe.Bool(t), nil
	case string:
		return cbe.Text(t), nil
	case []byte:
		return cbe.Bytes(t), nil
	case int:
		return cbe.Int(int64(t)), nil
	case int32:
		return cbe.Int(int64(t)), nil
	case int64:
		return cbe.Int(t), nil
	case uint:
		return cbe.Uint(uint64(t)), nil
	case uint32:
		return cbe.Uint(uint64(t)), nil
	case uint64:
		return cbe.Uint(t), nil
	case float32:
		return cbe.Float(float64(t)), nil
	case float64:
		return cbe.Float(t), nil
	case []string:
		seq := make([]cbe.Value, len(t))
		for i, s := range t {
			seq[i] = cbe.Text(s)
		}
		return cbe.Value{Kind: cbe.KindSequence, Seq: seq}, nil
	case []any:
		seq := make([]cbe.Value, len(t))
		for i, e := range t {
			ev, err := toCBE(e)
			if err != nil {
				return cbe.Value{}, err
			}
			seq[i] = ev
		}
		return cbe.Value{Kind: cbe.KindSequence, Seq: seq}, nil
	case map[string]any:
		return mapToCBE(t)
	default:
		return cbe.Value{}, fmt.Errorf("daxc: cannot encode value of type %T", v)
	}
}

func mapToCBE(m map[string]any) (cbe.Value, error) {
	if len(m) == 1 {
		for k, v := range m {
			switch k {
			case "SS":
				return setToCBE(cbe.TagStringSet, v, scalarText)
			case "NS":
				return setToCBE(cbe.TagNumberSet, v, scalarNumberText)
			case "BS":
				return setToCBE(cbe.TagBinarySet, v, scalarBytes)
			case "N":
				// numeric attributes travel as text to preserve precision
				s, err := numberText(v)
				if err != nil {
					return cbe.Value{}, err
				}
				return cbe.Map(cbe.Pair{Key: cbe.Text("N"), Val: cbe.Text(s)}), nil
			}
		}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]cbe.Pair, 0, len(m))
	for _, k := range keys {
		vv, err := toCBE(m[k])
		if err != nil {
			return cbe.Value{}, err
		}
		pairs = append(pairs, cbe.Pair{Key: cbe.Text(k), Val: vv})
	}
	return cbe.Value{Kind: cbe.KindMapping, Map: pairs}, nil
}

// setToCBE emits a tagged sequence of scalars. An empty set is still a
// tagged empty sequence.
func setToCBE(tag uint64, v any, scalar func(any) (cbe.Value, error)) (cbe.Value, error) {
	elems, err := anySlice(v)
	if err != nil {
		return cbe.Value{}, err
	}
	seq := make([]cbe.Value, len(elems))
	for i, e := range elems {
		sv, err := scalar(e)
		if err != nil {
			return cbe.Value{}, err
		}
		seq[i] = sv
	}
	return cbe.Tagged(tag, cbe.Value{Kind: cbe.KindSequence, Seq: seq}), nil
}

func anySlice(v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	case [][]byte:
		out := make([]any, len(t))
		for i, b := range t {
			out[i] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("daxc: set value must be a slice, got %T", v)
	}
}

func scalarText(v any) (cbe.Value, error) {
	s, ok := v.(string)
	if !ok {
		return cbe.Value{}, fmt.Errorf("daxc: string set element must be a string, got %T", v)
	}
	return cbe.Text(s), nil
}

func scalarNumberText(v any) (cbe.Value, error) {
	s, err := numberText(v)
	if err != nil {
		return cbe.Value{}, err
	}
	return cbe.Text(s), nil
}

func scalarBytes(v any) (cbe.Value, error) {
	b, ok := v.([]byte)
	if !ok {
		return cbe.Value{}, fmt.Errorf("daxc: binary set element must be bytes, got %T", v)
	}
	return cbe.Bytes(b), nil
}

// numberText renders a numeric attribute as its wire text form.
func numberText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int:
		return strconv.FormatInt(int64(t), 10), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("daxc: numeric attribute must be a string or number, got %T", v)
	}
}

// --------------------------------------------------------------------------
// Wire value -> attribute map
// --------------------------------------------------------------------------

// fromCBE converts a reply value back into the attribute form. Set tags
// become their single-discriminator maps; a mapping whose sole key is "N"
// is coerced to a number when its text parses as one.
func fromCBE(v cbe.Value) (any, error) {
	switch v.Kind {
	case cbe.KindNull:
		return nil, nil
	case cbe.KindBool:
		return v.Bool, nil
	case cbe.KindUint:
		if v.Uint > math.MaxInt64 {
			return v.Uint, nil
		}
		return int64(v.Uint), nil
	case cbe.KindNegInt:
		return v.Neg, nil
	case cbe.KindFloat:
		return v.Float, nil
	case cbe.KindBytes:
		return v.Bytes, nil
	case cbe.KindText:
		return v.Text, nil
	case cbe.KindSequence:
		out := make([]any, len(v.Seq))
		for i, e := range v.Seq {
			ev, err := fromCBE(e)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case cbe.KindMapping:
		return mapFromCBE(v)
	case cbe.KindTagged:
		return taggedFromCBE(v)
	default:
		return nil, fmt.Errorf("%w: unexpected value kind %s", common.ErrMalformedEncoding, v.Kind)
	}
}

func mapFromCBE(v cbe.Value) (any, error) {
	out := make(map[string]any, len(v.Map))
	for _, p := range v.Map {
		if p.Key.Kind != cbe.KindText {
			return nil, fmt.Errorf("%w: mapping key is %s, want text", common.ErrMalformedEncoding, p.Key.Kind)
		}
		pv, err := fromCBE(p.Val)
		if err != nil {
			return nil, err
		}
		out[p.Key.Text] = pv
	}

	if len(out) == 1 {
		if n, ok := out["N"]; ok {
			if s, ok := n.(string); ok {
				return map[string]any{"N": coerceNumber(s)}, nil
			}
		}
		if _, ok := out["NULL"]; ok {
			return map[string]any{"NULL": true}, nil
		}
	}
	return out, nil
}

// coerceNumber turns wire number text into int64 (no decimal point or
// exponent, and within the int64 range) or float64 otherwise; text that is
// not numeric is retained as-is.
func coerceNumber(s string) any {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func taggedFromCBE(v cbe.Value) (any, error) {
	inner := *v.Inner
	switch v.Tag {
	case cbe.TagStringSet, cbe.TagNumberSet, cbe.TagBinarySet:
		if inner.Kind != cbe.KindSequence {
			return nil, fmt.Errorf("%w: set tag %d wraps %s, want sequence", common.ErrMalformedEncoding, v.Tag, inner.Kind)
		}
		elems := make([]any, len(inner.Seq))
		for i, e := range inner.Seq {
			ev, err := fromCBE(e)
			if err != nil {
				return nil, err
			}
			elems[i] = ev
		}
		key := "SS"
		switch v.Tag {
		case cbe.TagNumberSet:
			key = "NS"
		case cbe.TagBinarySet:
			key = "BS"
		}
		return map[string]any{key: elems}, nil

	case cbe.TagDocPathOrdinal:
		ord, err := fromCBE(inner)
		if err != nil {
			return nil, err
		}
		return map[string]any{docPathOrdinalKey: ord}, nil

	default:
		// unknown tags pass their payload through untouched
		return fromCBE(inner)
	}
}

// itemFromCBE converts a reply body that must be an attribute map.
func itemFromCBE(v cbe.Value) (map[string]any, error) {
	out, err := fromCBE(v)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: reply body is not a mapping", common.ErrMalformedEncoding)
	}
	return m, nil
}
