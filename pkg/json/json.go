// Package json is the single JSON engine used across nbserde.
// It wraps goccy/go-json so every package encodes and decodes notebooks the same way.
package json

import (
	"bytes"
	"errors"
	"io"

	gojson "github.com/goccy/go-json"
)

// RawMessage is a raw encoded JSON value.
type RawMessage = gojson.RawMessage

// Number is a JSON number literal kept in its original text form.
type Number = gojson.Number

// SyntaxError describes malformed JSON input.
type SyntaxError = gojson.SyntaxError

// Encoder writes JSON values to an output stream.
type Encoder = gojson.Encoder

// Decoder reads JSON values from an input stream.
type Decoder = gojson.Decoder

// ErrTrailingData is returned by DecodeNumbers when more than one value is present.
var ErrTrailingData = errors.New("json: unexpected data after top-level value")

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent is like Marshal but applies indentation.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses JSON data into v.
func Unmarshal(data []byte, v any) error {
	return gojson.Unmarshal(data, v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return gojson.Valid(data)
}

// NewEncoder returns a new encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return gojson.NewEncoder(w)
}

// NewDecoder returns a new decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return gojson.NewDecoder(r)
}

// DecodeNumbers parses data into v keeping numbers as Number values, so
// integers and floats survive a later re-encode with their literal text.
// Trailing non-whitespace content after the first value is an error.
func DecodeNumbers(data []byte, v any) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return ErrTrailingData
		}
		return err
	}
	return nil
}

// EncodeIndent encodes v with the given indent unit, without HTML escaping
// and with a trailing newline. An empty indent produces compact output.
func EncodeIndent(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := gojson.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
