package session

import (
	"encoding/binary"
	"testing"

	"github.com/gridstream-io/sttp-go/guid"
	"github.com/gridstream-io/sttp-go/ticks"
)

func TestCompactMeasurementMarshalRoundTrip(t *testing.T) {
	const baseTimeOffset = int64(1000 * ticks.PerMillisecond)

	source := CompactMeasurement{
		Value:       3.14159,
		SignalIndex: 7,
		Flags:       StateFlagsEnum(0x20),
		Timestamp:   ticks.Ticks(baseTimeOffset + 123),
	}

	buffer := make([]byte, 16)
	n := source.Marshal(buffer, baseTimeOffset)

	decoded, consumed, err := NewCompactMeasurement(true, false, &[2]int64{baseTimeOffset, 0}, buffer[:n])

	if err != nil {
		t.Fatalf("NewCompactMeasurement returned error: %v", err)
	}

	if consumed != n {
		t.Fatalf("consumed = %d, want %d", consumed, n)
	}

	if decoded.SignalIndex != source.SignalIndex {
		t.Fatalf("SignalIndex = %d, want %d", decoded.SignalIndex, source.SignalIndex)
	}

	if decoded.Flags != source.Flags {
		t.Fatalf("Flags = %d, want %d", decoded.Flags, source.Flags)
	}

	if float32(decoded.Value) != source.Value {
		t.Fatalf("Value = %v, want %v", decoded.Value, source.Value)
	}

	if decoded.Timestamp != source.Timestamp {
		t.Fatalf("Timestamp = %d, want %d", decoded.Timestamp, source.Timestamp)
	}
}

func TestCompactMeasurementWithMillisecondTimestamp(t *testing.T) {
	baseTimeOffsets := [2]int64{int64(1000 * ticks.PerMillisecond), 0}

	// Wire order: flags, signalIndex, [timeDelta], [stateFlags], value - per spec.md §4.3.
	buffer := make([]byte, 0, 16)
	buffer = append(buffer, byte(0x02)) // TimeIndexIncluded, base time slot 0
	buffer = append(buffer, 0, 7)       // signal index = 7

	delta := make([]byte, 4)
	binary.BigEndian.PutUint32(delta, 50) // +50 ms
	buffer = append(buffer, delta...)

	value := make([]byte, 4)
	binary.BigEndian.PutUint32(value, 0x40490FDB) // float32 bits for ~3.14159
	buffer = append(buffer, value...)

	decoded, consumed, err := NewCompactMeasurement(true, true, &baseTimeOffsets, buffer)

	if err != nil {
		t.Fatalf("NewCompactMeasurement returned error: %v", err)
	}

	if consumed != len(buffer) {
		t.Fatalf("consumed = %d, want %d", consumed, len(buffer))
	}

	wantTimestamp := ticks.Ticks(baseTimeOffsets[0] + 50*int64(ticks.PerMillisecond))

	if decoded.Timestamp != wantTimestamp {
		t.Fatalf("Timestamp = %d, want %d", decoded.Timestamp, wantTimestamp)
	}
}

// TestCompactMeasurementScenario3 decodes the worked example from spec.md §8 scenario 3: a
// compact measurement carrying a timestamp delta of 1,000,000 (ms), zero state flags, and a
// value of 50.0, with UseMillisecondResolution negotiated so the delta is scaled by 10,000
// ticks/ms before being added to the b1 base-time slot.
func TestCompactMeasurementScenario3(t *testing.T) {
	baseTimeOffsets := [2]int64{0, 1000}

	buffer := make([]byte, 0, 15)
	buffer = append(buffer, byte(compactMeasurementFlags.TimeIndexIncluded|compactMeasurementFlags.DatumFlagsIncluded|compactMeasurementFlags.BaseTimeOffset))
	buffer = append(buffer, 0, 0) // signal index = 0, i.e., cache[0]

	delta := make([]byte, 4)
	binary.BigEndian.PutUint32(delta, 1000000) // delta=0x000F4240 per the worked example
	buffer = append(buffer, delta...)

	stateFlags := make([]byte, 4)
	binary.BigEndian.PutUint32(stateFlags, 0) // flags=0x00000000
	buffer = append(buffer, stateFlags...)

	value := make([]byte, 4)
	binary.BigEndian.PutUint32(value, 0x42480000) // value=0x42480000 == 50.0
	buffer = append(buffer, value...)

	decoded, consumed, err := NewCompactMeasurement(true, true, &baseTimeOffsets, buffer)

	if err != nil {
		t.Fatalf("NewCompactMeasurement returned error: %v", err)
	}

	if consumed != len(buffer) {
		t.Fatalf("consumed = %d, want %d", consumed, len(buffer))
	}

	if decoded.Value != 50.0 {
		t.Fatalf("Value = %v, want 50.0", decoded.Value)
	}

	wantTimestamp := ticks.Ticks(baseTimeOffsets[1] + 1000000*int64(ticks.PerMillisecond))

	if decoded.Timestamp != wantTimestamp {
		t.Fatalf("Timestamp = %d, want %d", decoded.Timestamp, wantTimestamp)
	}

	if decoded.Flags != 0 {
		t.Fatalf("Flags = %d, want 0", decoded.Flags)
	}
}

func TestCompactMeasurementTruncatedBuffer(t *testing.T) {
	if _, _, err := NewCompactMeasurement(false, false, &[2]int64{}, []byte{1, 2, 3}); err == nil {
		t.Fatal("NewCompactMeasurement on a too-short buffer should have returned an error")
	}
}

func TestCompactMeasurementExpand(t *testing.T) {
	cache := NewSignalIndexCache()
	sub := NewSubscriber()
	signalID := guid.New()

	cache.addRecord(sub, 3, signalID, "PPA:3", 3, 1)

	cm := CompactMeasurement{
		SignalIndex: 3,
		Value:       42.5,
		Timestamp:   1234,
		Flags:       0,
	}

	measurement := cm.Expand(cache)

	if measurement.SignalID != signalID {
		t.Fatalf("Expand SignalID = %v, want %v", measurement.SignalID, signalID)
	}

	if measurement.Value != float64(cm.Value) {
		t.Fatalf("Expand Value = %v, want %v", measurement.Value, cm.Value)
	}
}
