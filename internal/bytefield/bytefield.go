package bytefield

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBoundsViolation is matched by every BoundsError
var ErrBoundsViolation = errors.New("byte field out of bounds")

// ErrValueOverflow is returned when a value does not fit the width of its field
var ErrValueOverflow = errors.New("value does not fit field")

// BoundsError describes a read or write that would leave the buffer
type BoundsError struct {
	Offset int
	Size   int
	Len    int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("field [%d:%d] exceeds buffer of %d bytes", e.Offset, e.Offset+e.Size, e.Len)
}

// Is reports ErrBoundsViolation as the error kind
func (e *BoundsError) Is(target error) bool {
	return target == ErrBoundsViolation
}

func check(buf []byte, offset, size int) error {
	if offset < 0 || offset+size > len(buf) {
		return &BoundsError{Offset: offset, Size: size, Len: len(buf)}
	}
	return nil
}

// ReadU16 reads a 16-bit unsigned value at offset
func ReadU16(buf []byte, offset int, order binary.ByteOrder) (uint16, error) {
	if err := check(buf, offset, 2); err != nil {
		return 0, err
	}
	return order.Uint16(buf[offset:]), nil
}

// ReadU32 reads a 32-bit unsigned value at offset
func ReadU32(buf []byte, offset int, order binary.ByteOrder) (uint32, error) {
	if err := check(buf, offset, 4); err != nil {
		return 0, err
	}
	return order.Uint32(buf[offset:]), nil
}

// WriteU16 writes a 16-bit unsigned value at offset in place
func WriteU16(buf []byte, offset int, order binary.ByteOrder, v uint16) error {
	if err := check(buf, offset, 2); err != nil {
		return err
	}
	order.PutUint16(buf[offset:], v)
	return nil
}

// WriteU32 writes a 32-bit unsigned value at offset in place
func WriteU32(buf []byte, offset int, order binary.ByteOrder, v uint32) error {
	if err := check(buf, offset, 4); err != nil {
		return err
	}
	order.PutUint32(buf[offset:], v)
	return nil
}

// Field is a located integer field inside an encoded buffer.
// Offsets are only meaningful for the buffer they were derived from.
type Field struct {
	Offset int              `json:"offset"`
	Size   int              `json:"size"`
	Order  binary.ByteOrder `json:"-"`
}

// U16 returns a 2-byte field descriptor
func U16(offset int, order binary.ByteOrder) Field {
	return Field{Offset: offset, Size: 2, Order: order}
}

// U32 returns a 4-byte field descriptor
func U32(offset int, order binary.ByteOrder) Field {
	return Field{Offset: offset, Size: 4, Order: order}
}

// Max returns the largest value the field can store
func (f Field) Max() uint32 {
	if f.Size == 2 {
		return 0xFFFF
	}
	return 0xFFFFFFFF
}

// Read returns the field value widened to 32 bits
func (f Field) Read(buf []byte) (uint32, error) {
	switch f.Size {
	case 2:
		v, err := ReadU16(buf, f.Offset, f.Order)
		return uint32(v), err
	case 4:
		return ReadU32(buf, f.Offset, f.Order)
	default:
		return 0, fmt.Errorf("unsupported field size %d", f.Size)
	}
}

// Write stores v in the field, refusing values wider than the field
func (f Field) Write(buf []byte, v uint32) error {
	if v > f.Max() {
		return fmt.Errorf("%w: %d exceeds %d-bit field at offset %d", ErrValueOverflow, v, f.Size*8, f.Offset)
	}
	switch f.Size {
	case 2:
		return WriteU16(buf, f.Offset, f.Order, uint16(v))
	case 4:
		return WriteU32(buf, f.Offset, f.Order, v)
	default:
		return fmt.Errorf("unsupported field size %d", f.Size)
	}
}

// End returns the offset just past the field
func (f Field) End() int {
	return f.Offset + f.Size
}
