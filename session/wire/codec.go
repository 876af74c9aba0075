// Package wire implements the big-endian frame codec shared by every STTP
// command, response, and cache payload: bounds-checked reads/writes of
// fixed-width integers, RFC-4122 GUIDs, and length-prefixed UTF-8 strings.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gridstream-io/sttp-go/guid"
)

// ErrBounds is returned whenever a read would exceed the bounds of the
// supplied buffer.
var ErrBounds = errors.New("wire: buffer too small for requested read")

func validateParameters(buffer []byte, offset, length int) error {
	if offset < 0 || length < 0 || offset+length > len(buffer) {
		return fmt.Errorf("%w: offset %d, length %d, buffer %d", ErrBounds, offset, length, len(buffer))
	}

	return nil
}

// ReadU16 reads a big-endian uint16 at offset.
func ReadU16(buffer []byte, offset int) (uint16, error) {
	if err := validateParameters(buffer, offset, 2); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(buffer[offset:]), nil
}

// ReadU32 reads a big-endian uint32 at offset.
func ReadU32(buffer []byte, offset int) (uint32, error) {
	if err := validateParameters(buffer, offset, 4); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(buffer[offset:]), nil
}

// ReadU64 reads a big-endian uint64 at offset.
func ReadU64(buffer []byte, offset int) (uint64, error) {
	if err := validateParameters(buffer, offset, 8); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(buffer[offset:]), nil
}

// ReadI64 reads a big-endian int64 at offset.
func ReadI64(buffer []byte, offset int) (int64, error) {
	value, err := ReadU64(buffer, offset)
	return int64(value), err
}

// ReadGUID reads a 16-byte RFC-4122 encoded GUID at offset. When
// swapEndianness is true the legacy Microsoft mixed-endian layout is
// converted to RFC order on read.
func ReadGUID(buffer []byte, offset int, swapEndianness bool) (guid.Guid, error) {
	if err := validateParameters(buffer, offset, 16); err != nil {
		return guid.Empty, err
	}

	return guid.FromBytes(buffer[offset:offset+16], swapEndianness)
}

// ReadLenString reads a 32-bit length prefix followed by that many bytes of
// UTF-8 text, returning the string and the total number of bytes consumed.
func ReadLenString(buffer []byte, offset int) (string, int, error) {
	size, err := ReadU32(buffer, offset)

	if err != nil {
		return "", 0, err
	}

	start := offset + 4

	if err := validateParameters(buffer, start, int(size)); err != nil {
		return "", 0, err
	}

	return string(buffer[start : start+int(size)]), 4 + int(size), nil
}

// WriteU16 writes a big-endian uint16 at offset.
func WriteU16(buffer []byte, offset int, value uint16) {
	binary.BigEndian.PutUint16(buffer[offset:], value)
}

// WriteU32 writes a big-endian uint32 at offset.
func WriteU32(buffer []byte, offset int, value uint32) {
	binary.BigEndian.PutUint32(buffer[offset:], value)
}

// WriteU64 writes a big-endian uint64 at offset.
func WriteU64(buffer []byte, offset int, value uint64) {
	binary.BigEndian.PutUint64(buffer[offset:], value)
}

// WriteI64 writes a big-endian int64 at offset.
func WriteI64(buffer []byte, offset int, value int64) {
	WriteU64(buffer, offset, uint64(value))
}

// WriteGUID writes a GUID's 16 bytes, in RFC-4122 network order, at offset.
func WriteGUID(buffer []byte, offset int, value guid.Guid) {
	copy(buffer[offset:offset+16], value.Bytes(false))
}

// WriteLenString writes a 32-bit length prefix followed by the UTF-8 bytes
// of value, returning the total number of bytes written.
func WriteLenString(buffer []byte, offset int, value string) int {
	data := []byte(value)
	WriteU32(buffer, offset, uint32(len(data)))
	copy(buffer[offset+4:], data)
	return 4 + len(data)
}

// LenStringSize returns the number of bytes a length-prefixed string of
// value will occupy on the wire.
func LenStringSize(value string) int {
	return 4 + len(value)
}
