// Package wire implements the byte-level framing used to serialize
// credentials for transport. It plays the role of the "wire encoder"
// collaborator described by the credential subsystem: callers pack a
// sequence of typed fields into a single buffer at a negotiated protocol
// version, and unpack them back out in the same order.
//
// Framing is built on google.golang.org/protobuf/encoding/protowire's
// tag+varint primitives (this module has no generated protobuf message
// types; pkg/transport's messages are framed with this package), applied by
// hand the way
// Slurm's buf_t/pack32/packstr pair is applied by hand in the original
// implementation: every packer has a matching unpacker, called in the same
// field order, with no reflection or schema in between.
package wire

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Version identifies the wire layout of an encoded buffer. A credential
// built at one Version must be decoded at the same Version; pack.go's
// callers treat a mismatch as fatal rather than attempting to reframe.
type Version uint16

// Buffer is an append-only byte buffer with paired Put/Take helpers, the Go
// analogue of Slurm's buf_t.
type Buffer struct {
	b []byte
}

// NewBuffer returns an empty write buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// NewBufferFromBytes wraps an existing buffer for reading.
func NewBufferFromBytes(b []byte) *Buffer { return &Buffer{b: b} }

// Bytes returns the accumulated buffer contents.
func (b *Buffer) Bytes() []byte { return b.b }

// Len reports the number of unread bytes remaining.
func (b *Buffer) Len() int { return len(b.b) }

// PutUint32 appends a varint-encoded uint32 field.
func (b *Buffer) PutUint32(v uint32) {
	b.b = protowire.AppendVarint(b.b, uint64(v))
}

// TakeUint32 consumes a varint-encoded uint32 field.
func (b *Buffer) TakeUint32() (uint32, error) {
	v, n := protowire.ConsumeVarint(b.b)
	if n < 0 {
		return 0, fmt.Errorf("wire: truncated uint32 field")
	}
	b.b = b.b[n:]
	return uint32(v), nil
}

// PutUint64 appends a varint-encoded uint64 field.
func (b *Buffer) PutUint64(v uint64) {
	b.b = protowire.AppendVarint(b.b, v)
}

// TakeUint64 consumes a varint-encoded uint64 field.
func (b *Buffer) TakeUint64() (uint64, error) {
	v, n := protowire.ConsumeVarint(b.b)
	if n < 0 {
		return 0, fmt.Errorf("wire: truncated uint64 field")
	}
	b.b = b.b[n:]
	return v, nil
}

// PutTime appends a Unix-second timestamp.
func (b *Buffer) PutTime(t time.Time) {
	b.PutUint64(uint64(t.Unix()))
}

// TakeTime consumes a Unix-second timestamp.
func (b *Buffer) TakeTime() (time.Time, error) {
	v, err := b.TakeUint64()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(v), 0).UTC(), nil
}

// PutBytes appends a length-prefixed byte string.
func (b *Buffer) PutBytes(v []byte) {
	b.b = protowire.AppendBytes(b.b, v)
}

// TakeBytes consumes a length-prefixed byte string. The returned slice
// aliases the buffer's backing array; callers that retain it beyond the
// unpack call should copy it.
func (b *Buffer) TakeBytes() ([]byte, error) {
	v, n := protowire.ConsumeBytes(b.b)
	if n < 0 {
		return nil, fmt.Errorf("wire: truncated bytes field")
	}
	b.b = b.b[n:]
	return v, nil
}

// PutString appends a length-prefixed UTF-8 string.
func (b *Buffer) PutString(v string) {
	b.PutBytes([]byte(v))
}

// TakeString consumes a length-prefixed UTF-8 string.
func (b *Buffer) TakeString() (string, error) {
	v, err := b.TakeBytes()
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// PutUint32Array appends a length-prefixed array of varint uint32s.
func (b *Buffer) PutUint32Array(vs []uint32) {
	b.PutUint32(uint32(len(vs)))
	for _, v := range vs {
		b.PutUint32(v)
	}
}

// TakeUint32Array consumes a length-prefixed array of varint uint32s.
func (b *Buffer) TakeUint32Array() ([]uint32, error) {
	n, err := b.TakeUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]uint32, n)
	for i := range out {
		v, err := b.TakeUint32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// PutUint16Array appends a length-prefixed array of varint uint16s.
func (b *Buffer) PutUint16Array(vs []uint16) {
	b.PutUint32(uint32(len(vs)))
	for _, v := range vs {
		b.PutUint32(uint32(v))
	}
}

// TakeUint16Array consumes a length-prefixed array of varint uint16s.
func (b *Buffer) TakeUint16Array() ([]uint16, error) {
	n, err := b.TakeUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]uint16, n)
	for i := range out {
		v, err := b.TakeUint32()
		if err != nil {
			return nil, err
		}
		out[i] = uint16(v)
	}
	return out, nil
}

// PutUint64Array appends a length-prefixed array of varint uint64s.
func (b *Buffer) PutUint64Array(vs []uint64) {
	b.PutUint32(uint32(len(vs)))
	for _, v := range vs {
		b.PutUint64(v)
	}
}

// TakeUint64Array consumes a length-prefixed array of varint uint64s.
func (b *Buffer) TakeUint64Array() ([]uint64, error) {
	n, err := b.TakeUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]uint64, n)
	for i := range out {
		v, err := b.TakeUint64()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// PutStringArray appends a length-prefixed array of length-prefixed
// strings.
func (b *Buffer) PutStringArray(vs []string) {
	b.PutUint32(uint32(len(vs)))
	for _, v := range vs {
		b.PutString(v)
	}
}

// TakeStringArray consumes a length-prefixed array of length-prefixed
// strings.
func (b *Buffer) TakeStringArray() ([]string, error) {
	n, err := b.TakeUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, n)
	for i := range out {
		v, err := b.TakeString()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// PutBool appends a single-byte boolean field.
func (b *Buffer) PutBool(v bool) {
	if v {
		b.PutUint32(1)
	} else {
		b.PutUint32(0)
	}
}

// TakeBool consumes a single-byte boolean field.
func (b *Buffer) TakeBool() (bool, error) {
	v, err := b.TakeUint32()
	return v != 0, err
}

// PutBoolArray appends a length-prefixed bitmap, packed 8 bits per byte.
func (b *Buffer) PutBoolArray(vs []bool) {
	b.PutUint32(uint32(len(vs)))
	packed := make([]byte, (len(vs)+7)/8)
	for i, v := range vs {
		if v {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	b.PutBytes(packed)
}

// TakeBoolArray consumes a length-prefixed packed bitmap.
func (b *Buffer) TakeBoolArray() ([]bool, error) {
	n, err := b.TakeUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	packed, err := b.TakeBytes()
	if err != nil {
		return nil, err
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = packed[i/8]&(1<<uint(i%8)) != 0
	}
	return out, nil
}
