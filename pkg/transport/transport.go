// Package transport carries signed job credentials between a node daemon
// and the scheduler over gRPC. It defines a single thin RPC, Ship, whose
// request and response messages are plain Go structs serialized through
// pkg/wire rather than protoc-generated types: the channel transports
// already-signed credential bytes, so there is no schema to generate.
//
// Grounded on the teacher's pkg/api/server.go gRPC server shape, with the
// generated WarrenAPI service swapped for a hand-registered
// grpc.ServiceDesc and a custom "bastionwire" codec in place of the
// protobuf codec grpc.NewServer uses by default.
package transport

import (
	"context"

	"github.com/bastionrun/bastion/pkg/wire"
)

// ShipRequest carries a wire-encoded credential body and its detached
// signature, plus the wire version they were encoded at.
type ShipRequest struct {
	Version uint16
	Body    []byte
	Sig     []byte
}

// ShipResponse reports whether the shipped credential was accepted.
type ShipResponse struct {
	Accepted bool
	Reason   string
}

// Marshal encodes r using pkg/wire framing.
func (r *ShipRequest) Marshal() ([]byte, error) {
	b := wire.NewBuffer()
	b.PutUint32(uint32(r.Version))
	b.PutBytes(r.Body)
	b.PutBytes(r.Sig)
	return b.Bytes(), nil
}

// Unmarshal decodes data into r.
func (r *ShipRequest) Unmarshal(data []byte) error {
	b := wire.NewBufferFromBytes(data)
	version, err := b.TakeUint32()
	if err != nil {
		return err
	}
	body, err := b.TakeBytes()
	if err != nil {
		return err
	}
	sig, err := b.TakeBytes()
	if err != nil {
		return err
	}
	r.Version = uint16(version)
	r.Body = append([]byte(nil), body...)
	r.Sig = append([]byte(nil), sig...)
	return nil
}

// Marshal encodes r using pkg/wire framing.
func (r *ShipResponse) Marshal() ([]byte, error) {
	b := wire.NewBuffer()
	b.PutBool(r.Accepted)
	b.PutString(r.Reason)
	return b.Bytes(), nil
}

// Unmarshal decodes data into r.
func (r *ShipResponse) Unmarshal(data []byte) error {
	b := wire.NewBufferFromBytes(data)
	accepted, err := b.TakeBool()
	if err != nil {
		return err
	}
	reason, err := b.TakeString()
	if err != nil {
		return err
	}
	r.Accepted = accepted
	r.Reason = reason
	return nil
}

// CredentialShipServer is implemented by the node-side RPC handler.
type CredentialShipServer interface {
	Ship(ctx context.Context, req *ShipRequest) (*ShipResponse, error)
}
