package transport

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName identifies the wire-framed codec registered below, used in
// place of gRPC's default protobuf codec since ShipRequest/ShipResponse
// are plain structs, not generated proto.Message types.
const codecName = "bastionwire"

// wireMessage is implemented by every message type this codec carries.
type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

type bastionCodec struct{}

func (bastionCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("transport: %T does not implement wireMessage", v)
	}
	return m.Marshal()
}

func (bastionCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("transport: %T does not implement wireMessage", v)
	}
	return m.Unmarshal(data)
}

func (bastionCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(bastionCodec{})
}
