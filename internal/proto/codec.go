package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMissingType        = errors.New("message has no type tag")
)

// Encode serializes m as a tagged JSON object.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, errors.New("encode: nil message")
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s: unexpected body", m.Type())
	}

	tag, err := json.Marshal(string(m.Type()))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// Decode parses a tagged JSON object into its variant. Every non-optional
// field of the variant must be present and non-null.
func Decode(data []byte) (Message, error) {
	var env struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if env.Type == nil {
		return nil, ErrMissingType
	}
	ctor, ok := constructors[MessageType(*env.Type)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, *env.Type)
	}
	m := ctor()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.Type(), err)
	}
	if err := checkRequired(reflect.TypeOf(m), data, ""); err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.Type(), err)
	}
	return m, nil
}
