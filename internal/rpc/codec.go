package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is advertised to grpc-go as the wire content-subtype, the
// same slot a protoc-generated stack fills with "proto". Registering
// under that name lets this service use standard grpc.Dial/grpc.NewServer
// plumbing without a real protobuf marshaler.
const codecName = "proto"

// jsonCodec implements encoding.Codec by marshaling messages as JSON.
// Every message type in this package carries plain json tags for this
// reason.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpc: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
