package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for a cty value, suitable for
// content-addressed identity computation. This is the ONLY serialization
// that may feed the hash functions in this package.
//
// Canonical form rules:
//  1. Object and map keys sorted bytewise after NFC normalization
//  2. Strings NFC normalized, no HTML escaping
//  3. Numbers rendered with the minimum digits that round-trip
//  4. Unknown values are an error; null is rendered as "null"
func MarshalCanonical(v cty.Value) ([]byte, error) {
	if v == cty.NilVal {
		return nil, fmt.Errorf("cannot canonicalize the nil value")
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("cannot canonicalize an unknown value")
	}
	if v.IsNull() {
		return []byte("null"), nil
	}

	ty := v.Type()
	switch {
	case ty == cty.Bool:
		if v.True() {
			return []byte("true"), nil
		}
		return []byte("false"), nil

	case ty == cty.String:
		return marshalCanonicalString(v.AsString())

	case ty == cty.Number:
		// Text with negative precision emits the minimum digits needed
		// to reproduce the value exactly.
		return []byte(v.AsBigFloat().Text('g', -1)), nil

	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		var buf bytes.Buffer
		buf.WriteByte('[')
		first := true
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			encoded, err := MarshalCanonical(elem)
			if err != nil {
				return nil, err
			}
			if !first {
				buf.WriteByte(',')
			}
			buf.Write(encoded)
			first = false
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil

	case ty.IsObjectType() || ty.IsMapType():
		attrs := v.AsValueMap()
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		// Sort by the normalized form so the ordering matches what is
		// actually serialized.
		sort.Slice(keys, func(i, j int) bool {
			return norm.NFC.String(keys[i]) < norm.NFC.String(keys[j])
		})

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyJSON, err := marshalCanonicalString(k)
			if err != nil {
				return nil, err
			}
			valJSON, err := MarshalCanonical(attrs[k])
			if err != nil {
				return nil, err
			}
			buf.Write(keyJSON)
			buf.WriteByte(':')
			buf.Write(valJSON)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil

	case ty.IsCapsuleType():
		return nil, fmt.Errorf("cannot canonicalize capsule type %s", ty.FriendlyName())

	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %s", ty.FriendlyName())
	}
}

// marshalCanonicalString produces a canonical JSON string with NFC
// normalization and HTML escaping disabled (< > & pass through).
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// Encoder appends a trailing newline.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// FormatValue renders a value compactly for pin names and diagnostics.
// Strings render bare (no quotes) so switch-branch pin names read
// naturally; everything else uses the canonical form.
func FormatValue(v cty.Value) string {
	if v == cty.NilVal {
		return "<none>"
	}
	if !v.IsKnown() {
		return "<unknown>"
	}
	if v.IsNull() {
		return "null"
	}
	if v.Type() == cty.String {
		return norm.NFC.String(v.AsString())
	}
	encoded, err := MarshalCanonical(v)
	if err != nil {
		return v.GoString()
	}
	return string(encoded)
}
