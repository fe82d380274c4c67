package meting

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PayloadKind tags which variant a Payload holds.
type PayloadKind int

// Payload variants.
const (
	KindNull PayloadKind = iota
	KindText
	KindValue
)

func (k PayloadKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindValue:
		return "value"
	default:
		return "null"
	}
}

// Payload is the output of a Provider Client call. Providers running in
// formatted mode usually hand back JSON-encoded text; others return
// structured values. The two are never guessed at the use site: callers
// cross from text to structure through Decode.
type Payload struct {
	kind  PayloadKind
	text  string
	value any
}

// NullPayload returns the empty payload.
func NullPayload() Payload { return Payload{} }

// TextPayload wraps provider output received as text.
func TextPayload(s string) Payload {
	return Payload{kind: KindText, text: s}
}

// ValuePayload wraps a structured value. A nil value yields the null payload.
func ValuePayload(v any) Payload {
	if v == nil {
		return Payload{}
	}
	return Payload{kind: KindValue, value: v}
}

// Kind reports the variant held by p.
func (p Payload) Kind() PayloadKind { return p.kind }

// IsNull reports whether p carries nothing.
func (p Payload) IsNull() bool { return p.kind == KindNull }

// Text returns the raw text when p is a text payload.
func (p Payload) Text() (string, bool) {
	return p.text, p.kind == KindText
}

// Value returns the structured value when p is a value payload.
func (p Payload) Value() (any, bool) {
	return p.value, p.kind == KindValue
}

// Decoded is the outcome of crossing the text/structure boundary.
type Decoded struct {
	// Value is a generic JSON tree (map[string]any, []any, string,
	// json.Number, bool or nil). For opaque results it holds the raw text.
	Value any
	// Opaque marks text that is not JSON and must be treated as-is.
	Opaque bool
}

// Decode converts p into a generic JSON tree. Text that does not parse as
// JSON is not an error; it comes back as an Opaque result carrying the text.
// Structured values are normalized through a JSON round trip so callers see
// one tree shape regardless of the provider's Go types.
func (p Payload) Decode() Decoded {
	switch p.kind {
	case KindText:
		v, err := decodeJSON([]byte(p.text))
		if err != nil {
			return Decoded{Value: p.text, Opaque: true}
		}
		return Decoded{Value: v}
	case KindValue:
		switch p.value.(type) {
		case map[string]any, []any, string, bool, json.Number:
			return Decoded{Value: p.value}
		}
		raw, err := json.Marshal(p.value)
		if err != nil {
			return Decoded{Value: p.value, Opaque: true}
		}
		v, err := decodeJSON(raw)
		if err != nil {
			return Decoded{Value: p.value, Opaque: true}
		}
		return Decoded{Value: v}
	default:
		return Decoded{}
	}
}

// Bytes renders p as a JSON response body. Text is emitted verbatim, the
// way providers produced it; structured values are JSON-encoded.
func (p Payload) Bytes() ([]byte, error) {
	switch p.kind {
	case KindText:
		return []byte(p.text), nil
	case KindValue:
		raw, err := EncodeJSON(p.value)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return raw, nil
	default:
		return []byte("null"), nil
	}
}

// EncodeJSON marshals v without HTML escaping, so query strings inside
// links keep their literal '&'.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode json: trailing data")
	}
	return v, nil
}
