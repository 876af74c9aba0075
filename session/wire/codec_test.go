package wire

import (
	"errors"
	"testing"

	"github.com/gridstream-io/sttp-go/guid"
)

func TestReadWriteRoundTrip(t *testing.T) {
	buffer := make([]byte, 64)

	WriteU16(buffer, 0, 0xABCD)
	WriteU32(buffer, 2, 0xDEADBEEF)
	WriteU64(buffer, 6, 0x0123456789ABCDEF)
	WriteI64(buffer, 14, -42)

	id := guid.New()
	WriteGUID(buffer, 22, id)

	consumed := WriteLenString(buffer, 38, "hello, sttp")

	if u16, err := ReadU16(buffer, 0); err != nil || u16 != 0xABCD {
		t.Fatalf("ReadU16 = %d, %v", u16, err)
	}

	if u32, err := ReadU32(buffer, 2); err != nil || u32 != 0xDEADBEEF {
		t.Fatalf("ReadU32 = %d, %v", u32, err)
	}

	if u64, err := ReadU64(buffer, 6); err != nil || u64 != 0x0123456789ABCDEF {
		t.Fatalf("ReadU64 = %d, %v", u64, err)
	}

	if i64, err := ReadI64(buffer, 14); err != nil || i64 != -42 {
		t.Fatalf("ReadI64 = %d, %v", i64, err)
	}

	if readID, err := ReadGUID(buffer, 22, false); err != nil || readID != id {
		t.Fatalf("ReadGUID = %v, %v", readID, err)
	}

	value, readConsumed, err := ReadLenString(buffer, 38)

	if err != nil || value != "hello, sttp" || readConsumed != consumed {
		t.Fatalf("ReadLenString = %q, %d, %v", value, readConsumed, err)
	}

	if size := LenStringSize("hello, sttp"); size != consumed {
		t.Fatalf("LenStringSize = %d, want %d", size, consumed)
	}
}

func TestReadGUIDSwapEndianness(t *testing.T) {
	id := guid.New()
	buffer := id.Bytes(true)

	readID, err := ReadGUID(buffer, 0, true)

	if err != nil {
		t.Fatalf("ReadGUID returned error: %v", err)
	}

	if readID != id {
		t.Fatalf("ReadGUID with swapped endianness = %v, want %v", readID, id)
	}
}

func TestReadBoundsErrors(t *testing.T) {
	short := make([]byte, 3)

	if _, err := ReadU32(short, 0); !errors.Is(err, ErrBounds) {
		t.Fatalf("ReadU32 on short buffer = %v, want ErrBounds", err)
	}

	if _, err := ReadU64(short, 0); !errors.Is(err, ErrBounds) {
		t.Fatalf("ReadU64 on short buffer = %v, want ErrBounds", err)
	}

	if _, err := ReadGUID(short, 0, false); !errors.Is(err, ErrBounds) {
		t.Fatalf("ReadGUID on short buffer = %v, want ErrBounds", err)
	}

	if _, err := ReadU16(make([]byte, 2), 1); !errors.Is(err, ErrBounds) {
		t.Fatalf("ReadU16 with offset past end = %v, want ErrBounds", err)
	}

	if _, err := ReadU16(make([]byte, 2), -1); !errors.Is(err, ErrBounds) {
		t.Fatalf("ReadU16 with negative offset = %v, want ErrBounds", err)
	}
}

func TestReadLenStringTruncated(t *testing.T) {
	buffer := make([]byte, 4+5)
	WriteU32(buffer, 0, 10) // claims 10 bytes but only 5 are present

	if _, _, err := ReadLenString(buffer, 0); !errors.Is(err, ErrBounds) {
		t.Fatalf("ReadLenString on truncated payload = %v, want ErrBounds", err)
	}
}

func TestReadLenStringMissingLengthPrefix(t *testing.T) {
	buffer := make([]byte, 2)

	if _, _, err := ReadLenString(buffer, 0); !errors.Is(err, ErrBounds) {
		t.Fatalf("ReadLenString with no room for length prefix = %v, want ErrBounds", err)
	}
}
