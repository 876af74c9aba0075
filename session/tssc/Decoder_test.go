package tssc

import "testing"

func TestDecode7BitUInt32SingleByte(t *testing.T) {
	stream := []byte{42}
	position := 0

	value := decode7BitUInt32(stream, &position)

	if value != 42 {
		t.Fatalf("decode7BitUInt32 = %d, want 42", value)
	}

	if position != 1 {
		t.Fatalf("position = %d, want 1", position)
	}
}

func TestDecode7BitUInt32TwoBytes(t *testing.T) {
	// 200 encoded as a two-byte 7-bit varint: low 7 bits with continuation
	// bit set, then the remaining bits in the second byte.
	stream := []byte{0x80 | (200 & 0x7F), byte(200 >> 7)}
	position := 0

	value := decode7BitUInt32(stream, &position)

	if value != 200 {
		t.Fatalf("decode7BitUInt32 = %d, want 200", value)
	}

	if position != 2 {
		t.Fatalf("position = %d, want 2", position)
	}
}

func TestDecoderEmptyBufferReturnsNoMeasurement(t *testing.T) {
	decoder := NewDecoder(10)
	decoder.SetBuffer([]byte{})

	var id int32
	var timestamp int64
	var stateFlags uint32
	var value float32

	ok, err := decoder.TryGetMeasurement(&id, &timestamp, &stateFlags, &value)

	if err != nil {
		t.Fatalf("TryGetMeasurement returned error: %v", err)
	}

	if ok {
		t.Fatal("TryGetMeasurement on an empty buffer should return false")
	}
}

func TestDecoderResetClearsSequenceState(t *testing.T) {
	decoder := NewDecoder(10)
	decoder.SequenceNumber = 99
	decoder.SetBuffer([]byte{1, 2, 3})

	decoder.Reset()

	if decoder.SequenceNumber != 0 {
		t.Fatalf("SequenceNumber after Reset = %d, want 0", decoder.SequenceNumber)
	}

	if decoder.data != nil {
		t.Fatal("data should be nil after Reset")
	}

	if decoder.lastPoint == nil {
		t.Fatal("lastPoint should be reinitialized after Reset")
	}
}
