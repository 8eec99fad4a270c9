package schema

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts a field between its Go value and the value stored in the
// column.
type Codec interface {
	// Encode returns the column value for v, the field's address.
	Encode(v any) (any, error)
	// Decode reads data into v, the field's address. data is nil for NULL.
	Decode(data []byte, v any) error
}

// JSON stores a field as JSON text.
var JSON Codec = jsonCodec{}

// MsgPack stores a field as a MessagePack blob.
var MsgPack Codec = msgpackCodec{}

type jsonCodec struct{}

func (jsonCodec) Encode(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("schema: json encode: %w", err)
	}
	return string(b), nil
}

func (jsonCodec) Decode(data []byte, v any) error {
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("schema: json decode: %w", err)
	}
	return nil
}

type msgpackCodec struct{}

func (msgpackCodec) Encode(v any) (any, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("schema: msgpack encode: %w", err)
	}
	return b, nil
}

func (msgpackCodec) Decode(data []byte, v any) error {
	if data == nil {
		return nil
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("schema: msgpack decode: %w", err)
	}
	return nil
}
